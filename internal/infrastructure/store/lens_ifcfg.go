package store

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// ifcfgLens reads shell style KEY=VALUE files
type ifcfgLens struct{}

var ifcfgKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (ifcfgLens) Name() string { return "ifcfg" }

func (ifcfgLens) Parse(data []byte) (*node, error) {
	file := newNode("", "")
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			file.add(CommentLabel, strings.TrimSpace(strings.TrimPrefix(line, "#")))
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("line %d: expected KEY=VALUE", lineNo)
		}
		key := line[:eq]
		if !ifcfgKey.MatchString(key) {
			return nil, fmt.Errorf("line %d: invalid key %q", lineNo, key)
		}
		value, err := unquoteShell(line[eq+1:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		file.add(key, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return file, nil
}

func (ifcfgLens) Serialize(file *node) ([]byte, error) {
	var b bytes.Buffer
	for _, c := range file.children {
		if c.label == CommentLabel {
			b.WriteString("# " + c.value + "\n")
			continue
		}
		if len(c.children) > 0 {
			return nil, fmt.Errorf("%s: nested entries are not supported", c.label)
		}
		if !ifcfgKey.MatchString(c.label) {
			return nil, fmt.Errorf("invalid key %q", c.label)
		}
		b.WriteString(c.label + "=" + quoteShell(c.value) + "\n")
	}
	return b.Bytes(), nil
}

func unquoteShell(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	switch raw[0] {
	case '\'':
		if len(raw) < 2 || raw[len(raw)-1] != '\'' {
			return "", fmt.Errorf("unterminated single quote")
		}
		return raw[1 : len(raw)-1], nil
	case '"':
		if len(raw) < 2 || raw[len(raw)-1] != '"' {
			return "", fmt.Errorf("unterminated double quote")
		}
		var out strings.Builder
		body := raw[1 : len(raw)-1]
		for i := 0; i < len(body); i++ {
			if body[i] == '\\' && i+1 < len(body) && strings.IndexByte("\"\\$`", body[i+1]) >= 0 {
				i++
			}
			out.WriteByte(body[i])
		}
		return out.String(), nil
	}
	// unquoted values end at an inline comment
	if i := strings.Index(raw, " #"); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	if strings.ContainsAny(raw, " \t") {
		return "", fmt.Errorf("unquoted value %q contains whitespace", raw)
	}
	return raw, nil
}

func quoteShell(value string) string {
	if value == "" {
		return ""
	}
	if !strings.ContainsAny(value, " \t\"'\\$`#;&|<>()*?[]{}~!") {
		return value
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(value); i++ {
		if strings.IndexByte("\"\\$`", value[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(value[i])
	}
	b.WriteByte('"')
	return b.String()
}
