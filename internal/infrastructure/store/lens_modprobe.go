package store

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// modprobeLens reads modprobe.d fragments. "alias NAME MODULE" becomes an
// alias node valued NAME with a modulename child; other directives keep
// the rest of their line as value.
type modprobeLens struct{}

const (
	modprobeAlias      = "alias"
	modprobeModuleName = "modulename"
)

func (modprobeLens) Name() string { return "modprobe" }

func (modprobeLens) Parse(data []byte) (*node, error) {
	file := newNode("", "")
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			file.add(CommentLabel, strings.TrimSpace(strings.TrimPrefix(line, "#")))
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == modprobeAlias {
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: alias takes a name and a module", lineNo)
			}
			alias := file.add(modprobeAlias, fields[1])
			alias.add(modprobeModuleName, fields[2])
			continue
		}
		file.add(fields[0], strings.Join(fields[1:], " "))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return file, nil
}

func (modprobeLens) Serialize(file *node) ([]byte, error) {
	var b bytes.Buffer
	for _, c := range file.children {
		switch c.label {
		case CommentLabel:
			b.WriteString("# " + c.value + "\n")
		case modprobeAlias:
			module := c.nth(modprobeModuleName, 1)
			if c.value == "" || module == nil || module.value == "" {
				return nil, fmt.Errorf("alias %q has no module", c.value)
			}
			b.WriteString("alias " + c.value + " " + module.value + "\n")
		default:
			b.WriteString(strings.TrimSpace(c.label+" "+c.value) + "\n")
		}
	}
	return b.Bytes(), nil
}
