package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorgonia/mnistpipe"
	"github.com/gorgonia/mnistpipe/encoding/term"
)

func main() {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Enter the number of hidden workers please.")
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		log.Fatalf("reading the number of hidden workers: %v", err)
	}
	workers, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		log.Fatalf("%q is not a number of workers", strings.TrimSpace(line))
	}

	conf := mnistpipe.DefaultConfig(workers)
	conf.DotFile = "pipeline.dot"
	conf.StatsFile = "confusion.csv"
	conf.CrossCheck = 20
	// conf.GIFFile = "mnist.gif"

	start := time.Now()
	screen := term.New(os.Stdout)
	e, err := mnistpipe.New(conf, screen)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	// roles blocked by a failure may still hold the sources, so they are left to the exit
	if _, err = e.Run(); err != nil {
		log.Fatalf("%+v", err)
	}
	if err = e.Close(); err != nil {
		log.Printf("%+v", err)
	}
	screen.WriteAt(38, 5, fmt.Sprintf("DONE! Total execution time: %.1f sec\n", time.Since(start).Seconds()))
	if err = screen.Flush(); err != nil {
		log.Printf("%v", err)
	}
	e.Log(os.Stderr)
}
