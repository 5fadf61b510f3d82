// Package dto provides data transfer objects for S3 operations
package dto

import "time"

// S3Object is the structure to store the S3 object metadata.
// Folders are common prefixes returned by a delimited listing; their key ends with "/".
type S3Object struct {
	ETag         string    `json:"etag,omitempty"`
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	LastModified time.Time `json:"lastmodified"`
	Size         int64     `json:"size"`
	StorageClass string    `json:"storageclass,omitempty"`
	IsFolder     bool      `json:"isfolder"`
}

// Bucket represents an S3 bucket.
type Bucket struct {
	Name         string    `json:"name"`
	CreationDate time.Time `json:"creationDate"`
}
