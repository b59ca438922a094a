// Package tracefixture loads a recorded trace's action list and the
// stackmap records it depends on from a txtar archive: a single
// human-readable text file bundling the two sections a meta-tracer
// collaborator would otherwise hand the trace builder separately. It is
// the format cmd/jitdump's -fixture flag and this module's own tests read
// under testdata/.
//
// The AOT module a fixture's trace walks is not itself stored here: it is
// supplied separately (see internal/fixture), since aotir's
// on-disk format is binary and not a natural fit for a text archive.
package tracefixture

import (
	"bufio"
	"strconv"
	"strings"

	"golang.org/x/tools/txtar"

	"jitcore/internal/aotir"
	"jitcore/internal/jitrt"
	"jitcore/internal/stackmap"
	"jitcore/internal/tracebuilder"
)

// Bundle is one fixture's parsed contents.
type Bundle struct {
	Trace     []tracebuilder.TraceAction
	Stackmaps *stackmap.Table
}

// Load parses the txtar archive at path.
func Load(path string) (*Bundle, error) {
	ar, err := txtar.ParseFile(path)
	if err != nil {
		return nil, jitrt.NewGeneral("tracefixture: %v", err)
	}
	return fromArchive(ar)
}

// LoadBytes parses data as a txtar archive already read into memory.
func LoadBytes(data []byte) (*Bundle, error) {
	return fromArchive(txtar.Parse(data))
}

func fromArchive(ar *txtar.Archive) (*Bundle, error) {
	var traceData, stackmapsData []byte
	for _, f := range ar.Files {
		switch f.Name {
		case "trace.txt":
			traceData = f.Data
		case "stackmaps.txt":
			stackmapsData = f.Data
		}
	}
	if traceData == nil {
		return nil, jitrt.NewGeneral("tracefixture: archive has no trace.txt section")
	}
	if stackmapsData == nil {
		return nil, jitrt.NewGeneral("tracefixture: archive has no stackmaps.txt section")
	}

	trace, err := parseTrace(traceData)
	if err != nil {
		return nil, err
	}
	records, err := parseStackmaps(stackmapsData)
	if err != nil {
		return nil, err
	}
	return &Bundle{Trace: trace, Stackmaps: stackmap.NewTable(records)}, nil
}

// parseTrace reads one action per non-blank, non-comment line:
//
//	mapped <func-name> <block-idx>
//	unmapped
func parseTrace(data []byte) ([]tracebuilder.TraceAction, error) {
	var actions []tracebuilder.TraceAction
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		fields, ok := lineFields(sc.Text())
		if !ok {
			continue
		}
		switch fields[0] {
		case "mapped":
			if len(fields) != 3 {
				return nil, jitrt.NewGeneral("tracefixture: malformed mapped line %q", sc.Text())
			}
			block, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				return nil, jitrt.NewGeneral("tracefixture: bad block index in %q: %v", sc.Text(), err)
			}
			actions = append(actions, tracebuilder.Mapped(fields[1], aotir.BBlockIdx(block)))
		case "unmapped":
			actions = append(actions, tracebuilder.UnmappedRegion())
		default:
			return nil, jitrt.NewGeneral("tracefixture: unknown trace action %q", fields[0])
		}
	}
	return actions, sc.Err()
}

// parseStackmaps reads one record per non-blank, non-comment line:
//
//	<id> <size> <resume-pc> <live-func-idx> <live-block-idx> <live-instr-idx>
//
// Each line contributes exactly one live variable (CalleeSaved and Loc are
// left empty); that covers every fixture this module's tests need, and a
// richer line format can be added if a future fixture needs more.
func parseStackmaps(data []byte) ([]*stackmap.Record, error) {
	var records []*stackmap.Record
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		fields, ok := lineFields(sc.Text())
		if !ok {
			continue
		}
		if len(fields) != 6 {
			return nil, jitrt.NewGeneral("tracefixture: malformed stackmap line %q", sc.Text())
		}
		nums := make([]uint64, 6)
		for i, f := range fields {
			n, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return nil, jitrt.NewGeneral("tracefixture: bad integer in %q: %v", sc.Text(), err)
			}
			nums[i] = n
		}
		records = append(records, &stackmap.Record{
			ID:       stackmap.ID(nums[0]),
			Size:     uint32(nums[1]),
			ResumePC: nums[2],
			Live: []stackmap.LiveVar{
				{AotLocal: aotir.InstructionID{
					FuncIdx:   aotir.FuncIdx(nums[3]),
					BBlockIdx: aotir.BBlockIdx(nums[4]),
					InstrIdx:  aotir.InstrIdx(nums[5]),
				}},
			},
		})
	}
	return records, sc.Err()
}

func lineFields(line string) ([]string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, false
	}
	return strings.Fields(line), true
}
