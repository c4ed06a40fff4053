package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latticedb/lattice/durability"
)

// newReplayWALCmd copies a sequence-number range of records from one
// durability log into a fresh one, matching database/tools/replay_wal.rs.
// Useful for extracting a known-good prefix from a log with a corrupt tail,
// or for replaying a source database's history onto a clean directory.
func newReplayWALCmd() *cobra.Command {
	var from, to uint64
	var kinds []uint8
	cmd := &cobra.Command{
		Use:   "replay-wal <source-directory> <target-directory>",
		Short: "Copy a range of durability log records into a fresh log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplayWAL(args[0], args[1], from, to, cmd.Flags().Changed("to"), kinds)
		},
	}
	cmd.Flags().Uint64VarP(&from, "from", "f", 0, "Sequence number to start copying from (inclusive)")
	cmd.Flags().Uint64VarP(&to, "to", "t", 0, "Sequence number to stop copying at (inclusive); default is the last record")
	cmd.Flags().Uint8SliceVarP(&kinds, "kind", "k", nil, "Record type tags to keep; default keeps every type")
	return cmd
}

func runReplayWAL(srcDir, tgtDir string, from, to uint64, hasTo bool, kinds []uint8) error {
	src, err := durability.Open(srcDir)
	if err != nil {
		return fmt.Errorf("opening source wal at %s: %w", srcDir, err)
	}
	defer src.Close()

	tgt, err := durability.Open(tgtDir)
	if err != nil {
		return fmt.Errorf("opening target wal at %s: %w", tgtDir, err)
	}
	defer tgt.Close()

	keep := make(map[durability.RecordType]bool, len(kinds))
	for _, k := range kinds {
		keep[durability.RecordType(k)] = true
	}

	records, err := src.IterFrom(durability.SequenceNumber(from))
	if err != nil {
		return fmt.Errorf("reading source wal from %d: %w", from, err)
	}

	copied := 0
	for _, r := range records {
		if hasTo && uint64(r.SequenceNumber) > to {
			break
		}
		if len(keep) > 0 && !keep[r.Type] {
			continue
		}
		if _, err := tgt.SequencedWrite(r.Type, r.Bytes); err != nil {
			return fmt.Errorf("writing record seq=%d to target: %w", r.SequenceNumber, err)
		}
		copied++
	}
	fmt.Printf("replayed %d records into %s\n", copied, tgtDir)
	return nil
}
