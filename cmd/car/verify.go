package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	car "github.com/ipld/go-carstream"
)

// VerifyCar rehashes every block in the car and checks it against its CID.
func VerifyCar(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("usage: car verify <file.car>")
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	it, err := car.NewBlockIteratorFromStream(f, car.ValidateBlockHash(true))
	if err != nil {
		return err
	}
	var n int
	for {
		_, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		n++
	}
	fmt.Printf("%d blocks OK\n", n)
	return nil
}
