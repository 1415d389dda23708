// Package request parses the human-oriented output of `osc request list`
// into typed submit request records.
package request

import (
	"fmt"
	"strconv"
	"strings"
)

// SubmitRequest is a point-in-time snapshot of a submission of a package
// from a source project to a destination project.
type SubmitRequest struct {
	// ID is the unique identifier assigned by the build service.
	ID int
	// Description is the free text set by the submission author.
	Description string
	// SourceProject is the project the package was submitted from.
	SourceProject string
	// SourcePackage is the submitted package's name.
	SourcePackage string
	// SourceRevision is the submitted revision, treated as an opaque token.
	SourceRevision string
	// DestinationProject is where the submission wants to land.
	DestinationProject string
	// State is the request's lifecycle state.
	State State
}

// noResultsSentinel is what osc prints when a listing is empty.
const noResultsSentinel = "No results for package"

// Parse converts one request's worth of `osc request list` output into a
// SubmitRequest. The block must contain a single request with no blank
// lines inside it.
//
// The expected shape is a header line with the id and a State: token,
// followed by the submit line
//
//	submit: <project>/<package>@<revision> -> <destination>
//
// and, somewhere below it, a Descr: field whose text may continue over
// further lines indented past the start of the description text. Review
// and comment lines are ignored. osc moved the submit line from the second
// to the third line around 1.0.0~b4 by inserting a "Created by:" line, so
// both layouts are accepted.
func Parse(block string) (*SubmitRequest, error) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("malformed request output: %q", block)
	}

	header := strings.Fields(lines[0])
	if len(header) < 2 {
		return nil, fmt.Errorf("malformed request header: %q", lines[0])
	}
	id, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("malformed request id %q: %w", header[0], err)
	}
	_, stateToken, ok := strings.Cut(header[1], ":")
	if !ok {
		return nil, fmt.Errorf("malformed state field %q", header[1])
	}
	state, err := ParseState(stateToken)
	if err != nil {
		return nil, err
	}

	submitIdx := 1
	if fields := strings.Fields(lines[1]); len(fields) > 0 && fields[0] == "Created" {
		submitIdx = 2
	}
	if submitIdx >= len(lines) {
		return nil, fmt.Errorf("malformed request output: %q", block)
	}
	submitLine := lines[submitIdx]
	fields := strings.Fields(submitLine)
	if len(fields) != 4 || fields[0] != "submit:" || fields[2] != "->" {
		return nil, fmt.Errorf("malformed request output: %q", submitLine)
	}

	src, rev, ok := strings.Cut(fields[1], "@")
	if !ok {
		return nil, fmt.Errorf("missing @revision in source %q", fields[1])
	}
	prj, pkg, ok := strings.Cut(src, "/")
	if !ok {
		return nil, fmt.Errorf("missing /package in source %q", src)
	}

	description, err := parseDescription(lines[submitIdx+1:], submitLine)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, block)
	}

	return &SubmitRequest{
		ID:                 id,
		State:              state,
		Description:        description,
		SourceProject:      prj,
		SourcePackage:      pkg,
		SourceRevision:     rev,
		DestinationProject: fields[3],
	}, nil
}

// parseDescription reassembles the possibly line-wrapped Descr: field. The
// submit line's indentation is shared by all sibling fields of the block; a
// line whose leading characters up to that indentation plus "Descr: " are
// all whitespace continues the description, anything else ends it.
func parseDescription(rest []string, submitLine string) (string, error) {
	indent := len(submitLine) - len(strings.TrimLeft(submitLine, " \t"))
	contWidth := indent + len("Descr: ")

	var description string
	started := false
	for _, line := range rest {
		if started {
			if !isContinuation(line, contWidth) {
				break
			}
			// only the leading indentation is stripped; spacing inside
			// the continuation text is part of the description
			description += " " + strings.TrimLeft(line, " \t")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "Descr:" {
			continue
		}
		started = true
		description = strings.Join(fields[1:], " ")
	}
	if description == "" {
		return "", fmt.Errorf("request contains no description")
	}
	return description, nil
}

func isContinuation(line string, width int) bool {
	if len(line) < width {
		return false
	}
	return strings.TrimSpace(line[:width]) == ""
}

// ParseList converts the full output of `osc request list` into submit
// requests, one per blank-line-separated block, in input order. Output
// containing the "No results for package" sentinel yields an empty list.
// A single malformed block fails the whole call.
func ParseList(raw string) ([]*SubmitRequest, error) {
	if strings.Contains(raw, noResultsSentinel) {
		return nil, nil
	}

	var reqs []*SubmitRequest
	for _, block := range strings.Split(strings.TrimSpace(raw), "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		req, err := Parse(block)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
