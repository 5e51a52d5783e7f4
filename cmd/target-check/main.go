// Target-check validates a target silhouette asset before it is used
// in game: it must load, binarize, and keep at least one pixel at
// common frame resolutions.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/feliperocha/go-silhouette/internal/log"
	"github.com/feliperocha/go-silhouette/pkg/mask"
	"gocv.io/x/gocv"
)

func main() {
	path := flag.String("target", "assets/target.png", "Target silhouette image to check")
	flag.Parse()
	log.Init("")

	target, err := mask.LoadTarget(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid target: %v\n", err)
		os.Exit(1)
	}
	defer target.Close()

	w, h := target.Size()
	total := w * h
	fmt.Printf("target: %s\n", target.Path())
	fmt.Printf("size: %dx%d\n", w, h)
	fmt.Printf("pixels: %d (%.1f%% of the image)\n",
		target.Pixels(), float64(target.Pixels())/float64(total)*100)

	// A target should survive resampling to the resolutions the
	// camera actually delivers.
	for _, res := range [][2]int{{640, 480}, {1280, 720}, {1920, 1080}} {
		scaled := target.At(res[0], res[1])
		n := gocv.CountNonZero(scaled)
		if n == 0 {
			fmt.Fprintf(os.Stderr, "target vanishes at %dx%d\n", res[0], res[1])
			os.Exit(1)
		}
		fmt.Printf("at %dx%d: %d pixels\n", res[0], res[1], n)
	}
	fmt.Println("ok")
}
