package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Archive writes raw feed lines to daily log files. Files roll over at
// midnight UTC and the previous day's file is gzip-compressed.
type Archive struct {
	outputDir string
	file      *os.File
	mu        sync.Mutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// New creates an archive writing into outputDir.
func New(outputDir string) *Archive {
	return &Archive{
		outputDir: outputDir,
		stopChan:  make(chan struct{}),
	}
}

// Start opens today's file and starts the rotation timer.
func (a *Archive) Start() error {
	if err := a.openFile(); err != nil {
		return err
	}

	a.wg.Add(1)
	go a.rotationTimer()

	return nil
}

// Stop closes the current file and stops the rotation timer.
func (a *Archive) Stop() error {
	close(a.stopChan)
	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// WriteLine appends one feed line to the current file.
func (a *Archive) WriteLine(line string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		if err := a.openFile(); err != nil {
			return err
		}
	}

	if len(line) > 0 && line[len(line)-1] == '\n' {
		_, err := a.file.WriteString(line)
		return err
	}
	_, err := a.file.WriteString(line + "\n")
	return err
}

// rotationTimer rolls the file over at midnight UTC.
func (a *Archive) rotationTimer() {
	defer a.wg.Done()

	for {
		now := time.Now().UTC()
		nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

		select {
		case <-time.After(nextMidnight.Sub(now)):
			if err := a.rotateAndCompress(); err != nil {
				fmt.Printf("Error during rotation: %v\n", err)
			}
		case <-a.stopChan:
			return
		}
	}
}

// rotateAndCompress closes the current file, compresses yesterday's file
// and opens today's.
func (a *Archive) rotateAndCompress() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		a.file.Close()
		a.file = nil
	}

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	yesterdayFile := filepath.Join(a.outputDir, archiveName(yesterday))

	if _, err := os.Stat(yesterdayFile); err == nil {
		if err := compressFile(yesterdayFile); err != nil {
			return fmt.Errorf("failed to compress file: %w", err)
		}
	}

	return a.openFile()
}

// compressFile gzips path into path.gz and removes the original.
func compressFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer target.Close()

	gzipWriter := gzip.NewWriter(target)
	if _, err := io.Copy(gzipWriter, source); err != nil {
		gzipWriter.Close()
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

// openFile opens today's archive file for appending.
func (a *Archive) openFile() error {
	filename := filepath.Join(a.outputDir, archiveName(time.Now().UTC()))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	a.file = file
	return nil
}

func archiveName(day time.Time) string {
	return fmt.Sprintf("climo_feed_%s.log", day.Format("2006-01-02"))
}
