package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "car",
		Usage: "Utility for working with car files",
		Commands: []*cli.Command{
			{
				Name:    "create",
				Aliases: []string{"c"},
				Usage:   "Create a car file packing each input file as one raw block",
				Action:  CreateCar,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "The car file to write to",
					},
				},
			},
			{
				Name:    "inspect",
				Aliases: []string{"i"},
				Usage:   "Print version, roots and section stats of a car",
				Action:  InspectCar,
			},
			{
				Name:    "list",
				Aliases: []string{"l", "ls"},
				Usage:   "List the CIDs in a car",
				Action:  ListCar,
			},
			{
				Name:   "roots",
				Usage:  "List the root CIDs in a car",
				Action: CarRoots,
			},
			{
				Name:   "verify",
				Usage:  "Verify that every block hashes to its CID",
				Action: VerifyCar,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
