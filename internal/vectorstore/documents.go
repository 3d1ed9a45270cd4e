package vectorstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/llm-pipes/internal/fsops"
)

const (
	jsonExtension  = ".json"
	jsonlExtension = ".jsonl"

	documentsReadErrorFormat   = "read documents %s: %w"
	documentsDecodeErrorFormat = "decode documents %s: %w"
	documentsLineErrorFormat   = "decode documents %s line %d: %w"
	documentsEntryErrorFormat  = "decode documents %s entry %d: %w"
)

// ErrEmptyDocument is wrapped when a corpus entry carries no text to embed.
var ErrEmptyDocument = errors.New("document text is empty")

// LoadDocuments reads every .json file (an array of documents) and .jsonl file
// (one document per line) under root, in path order. Blank lines are skipped.
func LoadDocuments(fileSystem fsops.FS, root string) ([]Document, error) {
	files, inventoryErr := fsops.NewOps(fileSystem).Inventory(root, jsonExtension, jsonlExtension)
	if inventoryErr != nil {
		return nil, fmt.Errorf(documentsReadErrorFormat, root, inventoryErr)
	}

	var documents []Document
	for _, file := range files {
		data, readErr := fileSystem.ReadFile(file.Path)
		if readErr != nil {
			return nil, fmt.Errorf(documentsReadErrorFormat, file.Path, readErr)
		}
		var parsed []Document
		var parseErr error
		if file.Extension == jsonlExtension {
			parsed, parseErr = parseJSONLines(file.Path, data)
		} else {
			parsed, parseErr = parseJSONArray(file.Path, data)
		}
		if parseErr != nil {
			return nil, parseErr
		}
		documents = append(documents, parsed...)
	}
	return documents, nil
}

func parseJSONArray(path string, data []byte) ([]Document, error) {
	var documents []Document
	if err := json.Unmarshal(data, &documents); err != nil {
		return nil, fmt.Errorf(documentsDecodeErrorFormat, path, err)
	}
	for i, document := range documents {
		if strings.TrimSpace(document.Text) == "" {
			return nil, fmt.Errorf(documentsEntryErrorFormat, path, i, ErrEmptyDocument)
		}
	}
	return documents, nil
}

func parseJSONLines(path string, data []byte) ([]Document, error) {
	var documents []Document
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var document Document
		if err := json.Unmarshal(line, &document); err != nil {
			return nil, fmt.Errorf(documentsLineErrorFormat, path, lineNumber, err)
		}
		if strings.TrimSpace(document.Text) == "" {
			return nil, fmt.Errorf(documentsLineErrorFormat, path, lineNumber, ErrEmptyDocument)
		}
		documents = append(documents, document)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf(documentsDecodeErrorFormat, path, err)
	}
	return documents, nil
}
