package pathfind

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// truncatedMarker prefixes a path that was cut off before reaching the root
const truncatedMarker = "..."

// FormatOutput writes path results to w according to output format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatTable(w io.Writer, response *Response) error {
	if len(response.Paths) == 0 {
		fmt.Fprintf(w, "No paths found for inode %d.\n", response.Inode)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "PATH\tSTATE\tNOTES\n")
	fmt.Fprintf(tw, "----\t-----\t-----\n")
	for _, p := range response.Paths {
		state := "allocated"
		if !p.Allocated {
			state = "deleted"
		}
		path := p.Path
		var notes []string
		if p.Orphaned {
			notes = append(notes, "orphaned")
		}
		if p.Truncated {
			path = truncatedMarker + path
			notes = append(notes, "truncated")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", path, state, strings.Join(notes, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if response.Truncated {
		fmt.Fprintf(w, "\nshowing first %d paths\n", len(response.Paths))
	}
	return nil
}
