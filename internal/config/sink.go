// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// ResolvedSink is what a TopicRoute's sink target resolves to: enough
// to hand to an object-store client, without this package constructing
// one itself. Object-store I/O is a worker concern, not the config
// loader's.
type ResolvedSink struct {
	Bucket string
	Prefix string
	Region string
}

// ResolveS3Sink resolves an "s3://bucket/prefix" sink target against
// the process's ambient AWS configuration (environment, shared config
// file, IMDS role) via the default credential chain, returning the
// bucket/prefix/region a worker would need to address it. It performs
// no object-store I/O of its own — LoadDefaultConfig only resolves
// settings, it does not open a connection.
func ResolveS3Sink(ctx context.Context, sinkTarget string) (ResolvedSink, error) {
	rest, ok := strings.CutPrefix(sinkTarget, "s3://")
	if !ok {
		return ResolvedSink{}, fmt.Errorf("config: sink target %q is not an s3:// URI", sinkTarget)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return ResolvedSink{}, fmt.Errorf("config: sink target %q has no bucket", sinkTarget)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return ResolvedSink{}, fmt.Errorf("config: resolve AWS config for %q: %w", sinkTarget, err)
	}

	return ResolvedSink{Bucket: bucket, Prefix: prefix, Region: cfg.Region}, nil
}
