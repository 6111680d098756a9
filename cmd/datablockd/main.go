// Command datablockd is a small demo/ops harness around package
// blockmgr: it opens (or creates) a data file, wires up the extent
// manager, LBA index, and serializer collaborators, and offers a
// handful of subcommands to write, read, and inspect the store.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/revolution1/datablock/blockmgr"
	"github.com/revolution1/datablock/dbmetrics"
	"github.com/revolution1/datablock/extentmgr"
	"github.com/revolution1/datablock/internal/config"
	"github.com/revolution1/datablock/ioqueue"
	"github.com/revolution1/datablock/lbaindex"
	"github.com/revolution1/datablock/metablock"
	"github.com/revolution1/datablock/serializer"

	"github.com/armon/go-metrics"
)

var (
	cfgFile string
	extents uint
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "datablockd",
		Short: "Drive a data block manager store from the command line",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (optional)")
	root.PersistentFlags().UintVar(&extents, "extents", 256, "number of extent slots in the address space")

	root.AddCommand(writeCmd(), readCmd(), statsCmd())
	return root
}

// store bundles everything main wires together so each subcommand can
// open it, do one thing, and tear it down.
type store struct {
	mgr  *blockmgr.Manager
	ser  *serializer.Serializer
	file *ioqueue.File
	stop chan struct{}
}

func openStore() (*store, error) {
	f, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	static, dynamic := config.Split(f)

	ioFile, err := ioqueue.Open(f.DataFile, 0644, 64)
	if err != nil {
		return nil, err
	}

	lba := lbaindex.New()
	em := extentmgr.New(static.ExtentSize, extents)
	counters := dbmetrics.New(metrics.NewInmemSink(10e9, 10e9))

	ser := serializer.New(ioFile, lba, serializer.Config{
		BlockSize:       static.BlockSize,
		ReadAheadEnable: dynamic.ReadAheadEnable,
	})

	mgr, err := blockmgr.New(static, dynamic, blockmgr.AdaptExtentManager(em), ser.File(),
		blockmgr.WithMetrics(counters))
	if err != nil {
		return nil, err
	}
	ser.AttachManager(mgr)
	mgr.AttachSerializer(ser)

	mgr.StartReconstruct()
	mgr.EndReconstruct()
	mgr.StartExisting(ser.File(), metablock.Empty())

	stop := make(chan struct{})
	go ser.Run(stop)

	return &store{mgr: mgr, ser: ser, file: ioFile, stop: stop}, nil
}

func (s *store) close() {
	close(s.stop)
	if err := s.file.Close(); err != nil {
		log.WithError(err).Warn("datablockd: close data file")
	}
}

func writeCmd() *cobra.Command {
	var blockID uint32
	var text string
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write one block",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.close()

			static := s.mgr.StaticConfig()
			buf := make([]byte, static.BlockSize)
			copy(buf[blockmgr.BlockHeaderSize:], text)

			done := make(chan error, 1)
			offset, err := s.mgr.Write(buf, blockID, 1, s.ser.NiceAccount(), func(err error) { done <- err })
			if err != nil {
				return err
			}
			if err := <-done; err != nil {
				return err
			}
			fmt.Printf("wrote block %d at offset %d\n", blockID, offset)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&blockID, "block-id", 1, "block id to write")
	cmd.Flags().StringVar(&text, "text", "", "payload text")
	return cmd
}

func readCmd() *cobra.Command {
	var offset int64
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read one block by raw offset",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.close()

			static := s.mgr.StaticConfig()
			buf := make([]byte, static.BlockSize)
			done := make(chan error, 1)
			s.mgr.Read(blockmgr.Offset(offset), buf, s.ser.NiceAccount(), func(err error) { done <- err })
			if err := <-done; err != nil {
				return err
			}
			hdr := blockmgr.GetBlockHeader(buf)
			fmt.Printf("block_id=%d txn_id=%d payload=%q\n", hdr.BlockID, hdr.TransactionID,
				string(buf[blockmgr.BlockHeaderSize:]))
			return nil
		},
	}
	cmd.Flags().Int64Var(&offset, "offset", 0, "byte offset to read")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the current garbage ratio",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.close()
			fmt.Printf("garbage_ratio=%.4f\n", s.mgr.GarbageRatio())
			return nil
		},
	}
}
