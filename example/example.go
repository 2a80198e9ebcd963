// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

// This program benchmarks the cuckoo set variants under a concurrent
// op mix: populate part of the table, fan the mix out over worker
// goroutines, then reconcile the expected size against the set. Send
// SIGINFO (or SIGUSR1) to a running benchmark to dump live counters.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
	"leb.io/cuckooset"
	"leb.io/cuckooset/siginfo"
	"leb.io/cuckooset/workload"
	"leb.io/hrff"
)

var variant = flag.String("variant", "striped", "set variant {base, striped, phased}")
var nbuckets = flag.Int("n", 1024, "initial buckets per table")
var limit = flag.Int("limit", 100, "displacement/relocation bound")
var probeSize = flag.Int("ps", 4, "probe set size (phased)")
var threshold = flag.Int("th", 2, "probe set threshold (phased)")
var threads = flag.Int("t", 8, "worker goroutines")
var ops = flag.Int("ops", 1000000, "total operations")
var addRatio = flag.Float64("ar", 0.30, "add ratio")
var remRatio = flag.Float64("rr", 0.30, "remove ratio")
var keyMult = flag.Int("km", 4, "keys are drawn from [0, km*n)")
var popn = flag.Int("pop", -1, "elements to populate before the run, -1 for n/2")
var hashName = flag.String("h", "murmur3", "hash family {murmur3, xxhash, city, aes}")
var seed = flag.Int64("seed", 0, "seed for the random sources, 0 for random")
var verbose = flag.Bool("v", false, "debug logging")
var cp = flag.String("cp", "", "write cpu profile to file")
var mp = flag.String("mp", "", "write memory profile to this file")

// benchSet is what the driver needs from any of the variants.
type benchSet interface {
	workload.Set
	Populate(n int, gen func(*rand.Rand) uint64)
	Capacity() int
	Snapshot() cuckooset.CounterSnapshot
}

func newSet(log *logrus.Logger) (benchSet, error) {
	opts := []cuckooset.Option[uint64]{
		cuckooset.WithHashName[uint64](*hashName),
		cuckooset.WithLogger[uint64](log),
	}
	if *seed != 0 {
		opts = append(opts, cuckooset.WithSeed[uint64](*seed))
	}
	switch *variant {
	case "base":
		return cuckooset.New[uint64](*nbuckets, *limit, opts...)
	case "striped":
		return cuckooset.NewStriped[uint64](*nbuckets, *limit, opts...)
	case "phased":
		return cuckooset.NewPhased[uint64](*nbuckets, *limit, *probeSize, *threshold, opts...)
	default:
		return nil, fmt.Errorf("unknown variant %q", *variant)
	}
}

func main() {
	flag.Parse()
	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if *variant == "base" && *threads != 1 {
		log.Fatal("the base variant is sequential; run it with -t 1")
	}

	s, err := newSet(log)
	if err != nil {
		log.Fatal(err)
	}
	stop := siginfo.SetHandler(func() {
		fmt.Fprintf(os.Stderr, "%+v\n", s.Snapshot())
	})
	defer stop()

	if *cp != "" {
		f, err := os.Create(*cp)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	runSeed := *seed
	if runSeed == 0 {
		runSeed = rand.Int63()
	}
	keyRange := uint64(*keyMult) * uint64(*nbuckets)
	gen := func(r *rand.Rand) uint64 { return uint64(r.Int63n(int64(keyRange))) }

	pop := *popn
	if pop < 0 {
		pop = *nbuckets / 2
	}
	s.Populate(pop, gen)
	log.WithFields(logrus.Fields{
		"variant":  *variant,
		"buckets":  *nbuckets,
		"threads":  *threads,
		"ops":      *ops,
		"populate": pop,
		"keyrange": keyRange,
		"hash":     *hashName,
	}).Info("starting benchmark")

	rep := workload.Run(s, workload.Config{
		Threads:  *threads,
		Ops:      *ops,
		Mix:      workload.Mix{Add: *addRatio, Remove: *remRatio},
		KeyRange: keyRange,
		Seed:     runSeed,
	})

	rate := hrff.Int64{V: int64(float64(rep.Ops) / rep.Elapsed.Seconds()), U: "ops/s"}
	log.WithFields(logrus.Fields{
		"ops":      rep.Ops,
		"elapsed":  rep.Elapsed,
		"rate":     fmt.Sprintf("%h", rate),
		"expected": rep.Expected,
		"actual":   rep.Actual,
		"capacity": s.Capacity(),
	}).Info("benchmark complete")

	cs := s.Snapshot()
	log.WithFields(logrus.Fields{
		"inserts":   cs.Inserts,
		"deletes":   cs.Deletes,
		"lookups":   cs.Lookups,
		"bumps":     cs.Bumps,
		"relocates": cs.Relocates,
		"resizes":   cs.Resizes,
		"fails":     cs.Fails,
		"maxchain":  cs.MaxChain,
	}).Info("counters")

	if *mp != "" {
		f, err := os.Create(*mp)
		if err != nil {
			log.Fatal(err)
		}
		pprof.WriteHeapProfile(f)
		f.Close()
	}
	if rep.Expected != rep.Actual {
		log.WithFields(logrus.Fields{
			"expected": rep.Expected,
			"actual":   rep.Actual,
		}).Fatal("size reconciliation failed")
	}
}
