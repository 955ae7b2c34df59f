package agent

import (
	"errors"
	"regexp"
	"strings"
)

// Checklist is the structural outline of a security-controls reply.
type Checklist struct {
	Service  string
	Controls []string
}

var (
	errNoServiceLine  = errors.New("checklist: first line is not \"AWS Service: <name>\"")
	errNoControlsHead = errors.New("checklist: missing \"Security Controls:\" section")
	errNoControls     = errors.New("checklist: no numbered controls")

	controlLine = regexp.MustCompile(`^(\d+)\.\s+(\S.*)$`)
)

// ParseChecklist checks that text follows the output template and extracts
// the service name and control titles. Control content is not inspected.
func ParseChecklist(text string) (*Checklist, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return nil, errNoServiceLine
	}
	first := strings.TrimSpace(lines[i])
	name, ok := strings.CutPrefix(first, "AWS Service:")
	if !ok || strings.TrimSpace(name) == "" {
		return nil, errNoServiceLine
	}
	cl := &Checklist{Service: strings.TrimSpace(name)}

	inControls := false
	for _, l := range lines[i+1:] {
		// controls start at column 0; guidance is indented
		if !inControls {
			if strings.TrimSpace(l) == "Security Controls:" {
				inControls = true
			}
			continue
		}
		if m := controlLine.FindStringSubmatch(strings.TrimRight(l, " \t")); m != nil {
			cl.Controls = append(cl.Controls, strings.TrimSpace(m[2]))
		}
	}
	if !inControls {
		return nil, errNoControlsHead
	}
	if len(cl.Controls) == 0 {
		return nil, errNoControls
	}
	return cl, nil
}
