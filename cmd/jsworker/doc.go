// Package main is the jsworker command line.
//
// It runs a worker function locally or on a worker host and bridges the
// worker's messages to standard input and output, one JSON object per line:
//
//	echo '{"type":"ping","payload":{"n":1}}' | jsworker run main.js --listen pong
//
// It also inspects and controls a running host:
//
//	jsworker ps --host http://localhost:8000
//	jsworker kill wrk_01J... --host http://localhost:8000
package main
