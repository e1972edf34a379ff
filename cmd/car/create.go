package main

import (
	"fmt"
	"os"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-multihash"
	"github.com/urfave/cli/v2"

	car "github.com/ipld/go-carstream"
)

// CreateCar packs each input file into the output car as a single raw
// block, rooted at the first file's CID.
func CreateCar(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("usage: car create -o <file.car> <input>...")
	}
	output := c.String("output")
	if output == "" {
		return fmt.Errorf("an output file must be provided with -o")
	}

	var blks []blocks.Block
	var roots []cid.Cid
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		h, err := multihash.Sum(data, multihash.SHA2_256, -1)
		if err != nil {
			return err
		}
		blk, err := blocks.NewBlockWithCid(data, cid.NewCidV1(uint64(multicodec.Raw), h))
		if err != nil {
			return err
		}
		blks = append(blks, blk)
		roots = append(roots, blk.Cid())
	}
	roots = roots[:1]

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	w := car.NewWriterTo(roots, f)
	for _, blk := range blks {
		if err := w.Put(blk); err != nil {
			return err
		}
	}
	return w.Close()
}
