package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri-go/pkg/provider"
)

var showCmd = &cobra.Command{
	Use:   "show <spec>",
	Short: "Show a package's cached metadata, installed versions, and links",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	repo, err := provider.ParseRepoId(args[0])
	if err != nil {
		return err
	}

	result, err := uc.Show(repo)
	if err != nil {
		return err
	}

	m := result.Meta
	fmt.Printf("%s\n", repo)
	if m.Description != nil {
		fmt.Printf("  description: %s\n", *m.Description)
	}
	if m.Homepage != nil {
		fmt.Printf("  homepage: %s\n", *m.Homepage)
	}
	if m.License != nil {
		fmt.Printf("  license: %s\n", *m.License)
	}
	fmt.Printf("  current: %s\n", m.CurrentVersion)
	fmt.Printf("  api url: %s\n", m.APIURL)

	fmt.Println("  versions:")
	for _, v := range result.Versions {
		marker := "  "
		if v == m.CurrentVersion {
			marker = "* "
		}
		fmt.Printf("    %s%s\n", marker, v)
	}

	if len(m.Links) > 0 {
		fmt.Println("  links:")
		for _, l := range m.Links {
			fmt.Printf("    %s -> %s\n", l.Dest, describeLinkPath(l.Path))
		}
	}
	if len(m.VersionedLinks) > 0 {
		fmt.Println("  versioned links:")
		for _, l := range m.VersionedLinks {
			fmt.Printf("    %s@%s -> %s\n", l.Dest, l.Version, describeLinkPath(l.Path))
		}
	}
	return nil
}

func describeLinkPath(path string) string {
	if path == "" {
		return "(default target)"
	}
	return path
}
