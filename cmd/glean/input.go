package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// job is one URL to extract with the excerpt shared alongside it.
type job struct {
	URL     string
	Excerpt string
}

// collectJobs gathers URLs from arguments, the -f file and piped stdin, in
// that order. Stdin is read only when there are no arguments and no file.
func collectJobs(args []string, excerpt, path string, stdin *os.File) ([]job, error) {
	var jobs []job
	for _, arg := range args {
		jobs = append(jobs, job{URL: strings.TrimSpace(arg), Excerpt: excerpt})
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read URLs from file %s: %w", path, err)
		}
		defer f.Close()
		fileJobs, err := readJobs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read URLs from file %s: %w", path, err)
		}
		jobs = append(jobs, fileJobs...)
	}

	if len(args) == 0 && path == "" && stdin != nil {
		stat, err := stdin.Stat()
		if err != nil {
			return nil, err
		}
		// Only read when data is being piped in
		if stat.Mode()&os.ModeCharDevice == 0 {
			stdinJobs, err := readJobs(stdin)
			if err != nil {
				return nil, fmt.Errorf("failed to read URLs from stdin: %w", err)
			}
			jobs = append(jobs, stdinJobs...)
		}
	}

	valid := jobs[:0]
	for _, j := range jobs {
		if isValidURL(j.URL) {
			valid = append(valid, j)
		}
	}
	return valid, nil
}

// readJobs parses one URL per line, optionally followed by a tab and an
// excerpt. Blank lines and # comments are skipped.
func readJobs(r io.Reader) ([]job, error) {
	var jobs []job
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		url, ex, _ := strings.Cut(line, "\t")
		jobs = append(jobs, job{URL: strings.TrimSpace(url), Excerpt: strings.TrimSpace(ex)})
	}
	return jobs, scanner.Err()
}

func isValidURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
