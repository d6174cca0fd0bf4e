// Package index holds the segment-level model the codec formats work
// against: field descriptors with their attribute bags, and the per-segment
// write and read state handed to every format.
package index
