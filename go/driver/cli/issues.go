// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cliUtils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Input describes the execution an issue was found in.
type Input struct {
	Example     string `json:"example"`
	Argument    int    `json:"argument"`
	Interpreter string `json:"interpreter"`
}

type issue struct {
	input Input
	err   error
}

func (i *issue) Error() error {
	return i.err
}

func (i *issue) Input() Input {
	return i.input
}

type IssuesCollector struct {
	issues []issue
	mu     sync.Mutex
}

func (c *IssuesCollector) AddIssue(input Input, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues = append(c.issues, issue{input, err})
}

func (c *IssuesCollector) NumIssues() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issues)
}

func (c *IssuesCollector) GetIssues() []issue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.issues
}

// ExportIssues prints all issues and dumps their inputs into a temporary
// directory to aid reproducing them.
func (c *IssuesCollector) ExportIssues(out io.Writer) error {
	if len(c.issues) == 0 {
		return nil
	}
	jsonDir, err := os.MkdirTemp("", "sable_issues_*")
	if err != nil {
		return fmt.Errorf("failed to create output directory for %d issues", len(c.issues))
	}
	for i, issue := range c.issues {
		fmt.Fprintf(out, "----------------------------\n")
		fmt.Fprintf(out, "%s\n", issue.err)

		path := filepath.Join(jsonDir, fmt.Sprintf("issue_%06d.json", i))
		data, err := json.MarshalIndent(issue.input, "", "  ")
		if err == nil {
			err = os.WriteFile(path, data, 0644)
		}
		if err == nil {
			fmt.Fprintf(out, "Input dumped to %s\n", path)
		} else {
			fmt.Fprintf(out, "failed to dump input: %v\n", err)
		}
	}
	return nil
}
