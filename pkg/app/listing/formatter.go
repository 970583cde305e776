package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes listing results to w according to output format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable prints one line per entry: type, inode-seq and path, with a
// "*" marking deleted entries
func formatTable(w io.Writer, response *Response) error {
	if len(response.Entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

		fmt.Fprintf(tw, "TYPE\tDEL\tINODE\tPATH\n")
		fmt.Fprintf(tw, "----\t---\t-----\t----\n")
		for _, e := range response.Entries {
			del := ""
			if !e.Allocated {
				del = "*"
			}
			fmt.Fprintf(tw, "%s/%s\t%s\t%d-%d\t%s\n", e.Type, e.Type, del, e.Inode, e.Seq, e.Path)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Directory %d: %s\n", response.Directory, response.Status)
	fmt.Fprintf(w, "%d entries (%d deleted) in %v\n", response.Total, response.Deleted, response.ScanTime)
	for _, warning := range response.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	return nil
}

func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}

// FormatSummary provides a brief summary for verbose output
func FormatSummary(response *Response) string {
	if response.Total == 0 {
		return "No entries found"
	}

	summary := fmt.Sprintf("Found %d entr", response.Total)
	if response.Total == 1 {
		summary += "y"
	} else {
		summary += "ies"
	}
	if response.Deleted > 0 {
		summary += fmt.Sprintf(", %d deleted", response.Deleted)
	}
	if len(response.Warnings) > 0 {
		summary += fmt.Sprintf(", %d warnings", len(response.Warnings))
	}
	return summary
}
