package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/flowtube/flowtube/internal/config"
	"github.com/flowtube/flowtube/internal/services/extractor"
)

func main() {
	url := flag.String("url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "watch URL to resolve")
	flag.Parse()

	fmt.Println("Stream Extraction Test")
	fmt.Println("======================")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	client := extractor.NewClient(&cfg.Extractor)

	if !client.IsWatchURL(*url) {
		log.Fatalf("Not a supported watch URL: %s", *url)
	}

	videoID, err := client.ParseWatchURL(*url)
	if err != nil {
		log.Fatalf("Failed to parse watch URL: %v", err)
	}
	fmt.Printf("Video ID: %s\n", videoID)

	normalized, _ := client.NormalizeURL(*url)
	fmt.Printf("Normalized: %s\n\n", normalized)

	fmt.Println("Attempting extraction...")
	info, err := client.Extract(context.Background(), videoID)
	if err != nil {
		log.Fatalf("Extraction failed: %v", err)
	}

	fmt.Println("Extraction successful!")
	fmt.Printf("Title:    %s\n", info.Title)
	fmt.Printf("Author:   %s\n", info.Author)
	fmt.Printf("Duration: %s\n\n", info.Duration)

	fmt.Printf("Mixed streams: %d\n", len(info.MixedStreams))
	for _, c := range info.MixedStreams {
		fmt.Printf("  itag %3d  %4s  %s\n", c.Itag, c.QualityLabel, c.MimeType)
	}
	fmt.Printf("Video streams: %d\n", len(info.VideoStreams))
	for _, c := range info.VideoStreams {
		fmt.Printf("  itag %3d  %4s  %s\n", c.Itag, c.QualityLabel, c.MimeType)
	}
	fmt.Printf("Audio streams: %d\n", len(info.AudioStreams))
	for _, c := range info.AudioStreams {
		fmt.Printf("  itag %3d  %6d bps  %s\n", c.Itag, c.Bitrate, c.MimeType)
	}
}
