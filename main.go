package main

import "github.com/deploymenttheory/go-ntfs-forensics/cmd"

func main() {
	cmd.Execute()
}
