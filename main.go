package main

import (
	"fmt"
	"log"
	"os"

	"github.com/titaniumstudios/sstflash/cliargs"
	"github.com/titaniumstudios/sstflash/controller"
	"github.com/titaniumstudios/sstflash/criticalsection"
	"github.com/titaniumstudios/sstflash/memwindow"
	"github.com/titaniumstudios/sstflash/romimage"
	"github.com/titaniumstudios/sstflash/ticktimer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	opts, err := cliargs.Parse(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, cliargs.Usage)
		return 1
	}
	if opts.ShowUsage {
		fmt.Fprint(os.Stderr, cliargs.Usage)
		return 1
	}

	img, err := romimage.Load(opts.ImagePath, opts.SizeOverrideKiB)
	if err != nil {
		log.Println(err)
		return 1
	}

	if opts.Fingerprint {
		fmt.Printf("%08x\n", img.Fingerprint)
		return 0
	}

	mem, err := memwindow.NewPhysical(opts.DevMemPath)
	if err != nil {
		log.Println(err)
		return 1
	}
	defer mem.Close()

	keys := cliargs.NewTTYKeyReader(os.Stdin)
	logger := log.New(os.Stderr, "", 0)

	c := &controller.Controller{
		Provider: mem,
		CS:       criticalsection.NewOSSection(),
		Tick:     ticktimer.NewBIOSSource(),
		Log:      logger.Printf,
		Confirm:  func(prompt string) (bool, error) { return cliargs.Confirm(keys, prompt) },
		Halt:     halt,
	}

	if err := c.Run(img, opts.Segment); err != nil {
		log.Println(err)
		return 1
	}
	return 0
}

// halt models "the just-written host firmware cannot be trusted to
// continue running": production never returns from here, relying on the
// operator to power-cycle.
func halt() {
	select {}
}
