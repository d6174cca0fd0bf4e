// Package cache holds the block cache blobstore.CachingStore puts in front of
// remote segment files.
//
// Segment files are write-once, so a block cached under (file, block) stays
// valid until the file is replaced or deleted; the store then drops every
// block of that file with DropFile.
package cache
