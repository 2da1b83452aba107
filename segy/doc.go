/*
	Package segy reads and writes SEG-Y trace files.

	A File is memory mapped read-only.  Trace headers are exposed as TraceHeader
	views into the mapping and samples are decoded on demand into float32, so a
	caller can walk millions of headers without copying trace data.
*/
package segy
