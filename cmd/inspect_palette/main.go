// Command inspect_palette prints the position of block states in a Bedrock
// block palette. With network id hashing disabled, the position is the runtime
// id the visual.mask_runtime_id, falling_runtime_id and air_runtime_id
// settings expect.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

type blockState struct {
	Name       string         `nbt:"name"`
	Properties map[string]any `nbt:"states"`
	Version    int32          `nbt:"version"`
}

func main() {
	file := flag.String("palette", "block_states.nbt", "path to the block state palette")
	match := flag.String("match", "", "only print states whose name contains this text")
	flag.Parse()

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	states, err := readPalette(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	id := color.New(color.FgCyan).SprintFunc()
	for i, s := range states {
		if *match != "" && !strings.Contains(s.Name, *match) {
			continue
		}
		fmt.Printf("%s %s %s\n", id(i), s.Name, formatProperties(s.Properties))
	}
}

// readPalette decodes every state in the palette until the end of data.
func readPalette(data []byte) ([]blockState, error) {
	buf := bytes.NewBuffer(data)
	dec := nbt.NewDecoder(buf)
	var states []blockState
	for buf.Len() > 0 {
		var s blockState
		if err := dec.Decode(&s); err != nil {
			return states, fmt.Errorf("decode state %d: %w", len(states), err)
		}
		states = append(states, s)
	}
	return states, nil
}

func formatProperties(props map[string]any) string {
	if len(props) == 0 {
		return "[]"
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, props[k])
	}
	return "[" + strings.Join(parts, ",") + "]"
}
