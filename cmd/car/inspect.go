package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	car "github.com/ipld/go-carstream"
)

// InspectCar prints the version, roots and section statistics of a car.
func InspectCar(c *cli.Context) error {
	inStream := os.Stdin
	if c.Args().Len() >= 1 {
		var err error
		inStream, err = os.Open(c.Args().First())
		if err != nil {
			return err
		}
		defer inStream.Close()
	}

	in, err := car.NewIndexerFromStream(inStream)
	if err != nil {
		return err
	}

	fmt.Printf("Version: %d\n", in.Version)
	fmt.Printf("Roots: %d\n", len(in.Roots))
	for _, r := range in.Roots {
		fmt.Printf("\t%s\n", r.String())
	}

	var sections, payload uint64
	for {
		meta, err := in.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		sections++
		payload += meta.BlockLength
	}
	fmt.Printf("Sections: %d\n", sections)
	fmt.Printf("Payload: %s\n", humanize.IBytes(payload))
	return nil
}
