// Package storage provides the durable sinks uploaded files are written to.
//
// Blob sinks are backed by gocloud.dev buckets (file://, mem://, s3://).
// Minio sinks stream straight into a bucket of an S3 compatible server.
package storage
