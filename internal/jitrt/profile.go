package jitrt

import (
	"os"
	"time"

	"github.com/google/pprof/profile"
)

// TraceStats summarises one compiled trace for the optional pprof profile.
type TraceStats struct {
	CtrID     uint64
	NumGuards int
	NumInsts  int
	CodeBytes int
}

// WriteProfile appends stats as samples of a pprof profile and writes it to
// the path named by JITCORE_PROFILE, if set. It is a no-op (and returns a
// nil error) when the environment variable is unset, so callers can call it
// unconditionally after every compilation.
//
// This gives whoever embeds the JIT a way to inspect, with `go tool pprof`,
// how guard counts and code size evolve across the traces a running
// interpreter compiles, without the core depending on any particular
// metrics backend.
func WriteProfile(stats []TraceStats) error {
	path := os.Getenv("JITCORE_PROFILE")
	if path == "" {
		return nil
	}

	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "guards", Unit: "count"},
			{Type: "instructions", Unit: "count"},
			{Type: "code_size", Unit: "bytes"},
		},
		TimeNanos:     time.Now().UnixNano(),
		DurationNanos: 0,
	}
	for _, s := range stats {
		prof.Sample = append(prof.Sample, &profile.Sample{
			Value: []int64{int64(s.NumGuards), int64(s.NumInsts), int64(s.CodeBytes)},
			Label: map[string][]string{"ctr_id": {uitoa(s.CtrID)}},
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return NewResourceExhausted(err)
	}
	defer f.Close()
	if err := prof.Write(f); err != nil {
		return NewGeneral("writing pprof profile: %v", err)
	}
	return nil
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
