// Package benchmark provides performance benchmarks for tokbroker.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Compare store backends only:
//
//	go test -bench=BenchmarkStore -benchmem -benchtime=5s ./internal/tests/benchmark/...
//
// Generate a report and compare against a baseline:
//
//	go test -bench=. -benchmem -count=5 ./internal/tests/benchmark/... | tee benchmark.txt
//	benchstat old.txt new.txt
package benchmark
