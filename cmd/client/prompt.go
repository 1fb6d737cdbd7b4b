package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var errNoInput = errors.New("no input")

// promptLine prints label and reads one trimmed line.
func promptLine(in *bufio.Scanner, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return "", err
		}
		return "", errNoInput
	}
	return strings.TrimSpace(in.Text()), nil
}

// promptData asks for a JSON file path, or inline JSON when left empty.
func promptData(in *bufio.Scanner, out io.Writer) (json.RawMessage, error) {
	path, err := promptLine(in, out, "Enter file path to load (leave empty for manual input): ")
	if err != nil {
		return nil, err
	}

	var data []byte
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %q: %w", path, err)
		}
	} else {
		line, err := promptLine(in, out, "Enter JSON data: ")
		if err != nil {
			return nil, err
		}
		data = []byte(line)
	}

	if !json.Valid(data) {
		return nil, errors.New("data is not valid JSON")
	}
	return data, nil
}
