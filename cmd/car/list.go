package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	car "github.com/ipld/go-carstream"
)

// ListCar is a command to output the cids in a car.
func ListCar(c *cli.Context) error {
	inStream := os.Stdin
	if c.Args().Len() >= 1 {
		var err error
		inStream, err = os.Open(c.Args().First())
		if err != nil {
			return err
		}
		defer inStream.Close()
	}

	it, err := car.NewCidIteratorFromStream(inStream)
	if err != nil {
		return err
	}
	for {
		cid, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(cid.String())
	}
}

// CarRoots prints the root CIDs listed in the car header.
func CarRoots(c *cli.Context) error {
	inStream := os.Stdin
	if c.Args().Len() >= 1 {
		var err error
		inStream, err = os.Open(c.Args().First())
		if err != nil {
			return err
		}
		defer inStream.Close()
	}

	it, err := car.NewCidIteratorFromStream(inStream)
	if err != nil {
		return err
	}
	for _, r := range it.Roots {
		fmt.Println(r.String())
	}
	return nil
}
