package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mkallio/graphdrive-go/internal/drive"
)

// maxConcurrentUploads bounds how many files put transfers at once. Each
// file gets its own upload session; sessions share no state.
const maxConcurrentUploads = 3

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List files and folders",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}

	cmd.Flags().Bool("files", false, "list only files")
	cmd.Flags().Bool("folders", false, "list only folders")

	return cmd
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Display file or folder metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runStat,
	}
}

func newMkdirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}

	cmd.Flags().String("on-conflict", "fail", "name collision policy: fail, replace, or rename")

	return cmd
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-file>...",
		Short: "Upload files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPut,
	}

	cmd.Flags().String("to", "", "remote folder path (default: drive root)")
	cmd.Flags().String("on-conflict", "replace", "name collision policy: fail, replace, or rename")

	return cmd
}

func newCancelUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel-upload <name>",
		Short: "Cancel a persisted upload session",
		Args:  cobra.ExactArgs(1),
		RunE:  runCancelUpload,
	}

	cmd.Flags().String("to", "", "remote folder path the upload targeted (default: drive root)")

	return cmd
}

// resolveFolder returns the folder at remotePath, or the drive root when
// remotePath is empty or "/".
func resolveFolder(ctx context.Context, c *drive.Client, remotePath string) (*drive.Folder, error) {
	remotePath = strings.Trim(remotePath, "/")
	if remotePath == "" {
		return c.Root(ctx)
	}

	return c.FolderByPath(ctx, remotePath)
}

// parsePolicy maps the --on-conflict flag to a CollisionPolicy.
func parsePolicy(s string) (drive.CollisionPolicy, error) {
	switch s {
	case "fail":
		return drive.FailIfExists, nil
	case "replace":
		return drive.ReplaceExisting, nil
	case "rename":
		return drive.GenerateUniqueName, nil
	}

	return 0, fmt.Errorf("invalid collision policy %q (want fail, replace, or rename)", s)
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	client, err := newDriveClient(ctx, logger)
	if err != nil {
		return err
	}

	var remotePath string
	if len(args) == 1 {
		remotePath = args[0]
	}

	folder, err := resolveFolder(ctx, client, remotePath)
	if err != nil {
		return err
	}

	filesOnly, _ := cmd.Flags().GetBool("files")     //nolint:errcheck // flag registered above
	foldersOnly, _ := cmd.Flags().GetBool("folders") //nolint:errcheck // flag registered above

	if filesOnly && foldersOnly {
		return fmt.Errorf("--files and --folders are mutually exclusive")
	}

	opts := drive.ListOptions{PageSize: resolvedCfg.PageSize, OrderBy: "name"}

	var first func(context.Context, drive.ListOptions) ([]drive.Item, error)

	var next func(context.Context) ([]drive.Item, error)

	switch {
	case filesOnly:
		first, next = folder.Files, folder.NextFiles
	case foldersOnly:
		first, next = folder.Folders, folder.NextFolders
	default:
		first, next = folder.Children, folder.NextChildren
	}

	var all []drive.Item

	items, err := first(ctx, opts)
	if err != nil {
		return err
	}

	for items != nil {
		all = append(all, items...)

		items, err = next(ctx)
		if err != nil {
			return err
		}
	}

	if flagJSON {
		return printItemsJSON(all)
	}

	printItemsTable(all)

	return nil
}

// lsJSONItem is the JSON output schema for a single item in ls output.
type lsJSONItem struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Kind       string `json:"kind"`
	ModifiedAt string `json:"modified_at,omitempty"`
	ID         string `json:"id"`
}

func printItemsJSON(items []drive.Item) error {
	out := make([]lsJSONItem, 0, len(items))

	for i := range items {
		it := &items[i]

		j := lsJSONItem{
			Name: it.Name,
			Size: it.Size,
			Kind: it.Kind.String(),
			ID:   it.ID,
		}

		if !it.Modified.IsZero() {
			j.ModifiedAt = it.Modified.UTC().Format(time.RFC3339)
		}

		out = append(out, j)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func printItemsTable(items []drive.Item) {
	for i := range items {
		it := &items[i]
		fmt.Printf("%10s  %s  %s\n", formatSize(it.Size), formatTime(it.Modified), displayName(it))
	}
}

func runStat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := newDriveClient(ctx, buildLogger())
	if err != nil {
		return err
	}

	item, err := client.ItemByPath(ctx, strings.Trim(args[0], "/"))
	if err != nil {
		return err
	}

	if item == nil {
		return fmt.Errorf("no such path: %s", args[0])
	}

	if flagJSON {
		return printStatJSON(item)
	}

	fmt.Printf("Name:     %s\n", item.Name)
	fmt.Printf("ID:       %s\n", item.ID)
	fmt.Printf("Kind:     %s\n", item.Kind)
	fmt.Printf("Size:     %s\n", formatSize(item.Size))

	if !item.Modified.IsZero() {
		fmt.Printf("Modified: %s\n", formatTime(item.Modified))
	}

	if item.Kind == drive.KindFolder && item.ChildCount != drive.ChildCountUnknown {
		fmt.Printf("Children: %d\n", item.ChildCount)
	}

	if item.MimeType != "" {
		fmt.Printf("Type:     %s\n", item.MimeType)
	}

	return nil
}

// statJSONOutput is the JSON output schema for the stat command.
type statJSONOutput struct {
	Name       string `json:"name"`
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mime_type,omitempty"`
	ChildCount *int   `json:"child_count,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

func printStatJSON(item *drive.Item) error {
	out := statJSONOutput{
		Name:     item.Name,
		ID:       item.ID,
		Kind:     item.Kind.String(),
		Size:     item.Size,
		MimeType: item.MimeType,
	}

	if item.Kind == drive.KindFolder && item.ChildCount != drive.ChildCountUnknown {
		out.ChildCount = &item.ChildCount
	}

	if !item.Modified.IsZero() {
		out.ModifiedAt = item.Modified.UTC().Format(time.RFC3339)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func runMkdir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := newDriveClient(ctx, buildLogger())
	if err != nil {
		return err
	}

	policyName, _ := cmd.Flags().GetString("on-conflict") //nolint:errcheck // flag registered above

	policy, err := parsePolicy(policyName)
	if err != nil {
		return err
	}

	full := strings.Trim(args[0], "/")
	parentPath, name := path.Split(full)

	parent, err := resolveFolder(ctx, client, parentPath)
	if err != nil {
		return err
	}

	created, err := parent.CreateFolder(ctx, name, policy)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(mkdirJSONOutput{Created: created.Name, ID: created.ID})
	}

	statusf(flagQuiet, "Created folder %s\n", created.Name)

	return nil
}

// mkdirJSONOutput is the JSON output schema for the mkdir command.
type mkdirJSONOutput struct {
	Created string `json:"created"`
	ID      string `json:"id"`
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := newDriveClient(ctx, buildLogger())
	if err != nil {
		return err
	}

	remotePath, _ := cmd.Flags().GetString("to")          //nolint:errcheck // flag registered above
	policyName, _ := cmd.Flags().GetString("on-conflict") //nolint:errcheck // flag registered above

	policy, err := parsePolicy(policyName)
	if err != nil {
		return err
	}

	folder, err := resolveFolder(ctx, client, remotePath)
	if err != nil {
		return err
	}

	// Each file is an independent upload session; sessions may proceed
	// concurrently because they share no state.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)

	showProgress := len(args) == 1 && stdoutIsTTY()

	for _, localPath := range args {
		g.Go(func() error {
			if err := uploadOne(gctx, folder, localPath, policy, showProgress); err != nil {
				return fmt.Errorf("%s: %w", localPath, err)
			}

			statusf(flagQuiet, "Uploaded %s\n", filepath.Base(localPath))

			return nil
		})
	}

	return g.Wait()
}

// uploadOne sends one local file: the single-request path for small files,
// the chunked session path for everything larger.
func uploadOne(
	ctx context.Context, folder *drive.Folder, localPath string,
	policy drive.CollisionPolicy, showProgress bool,
) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	name := filepath.Base(localPath)

	if info.Size() <= drive.SimpleUploadMaxSize {
		content, readErr := os.ReadFile(localPath)
		if readErr != nil {
			return readErr
		}

		_, err = folder.CreateFile(ctx, name, content, policy)

		return err
	}

	opts := drive.UploadOptions{ChunkSize: resolvedCfg.ChunkSizeBytes()}
	if showProgress {
		opts.Progress = func(sent, total int64) {
			fmt.Fprintf(os.Stderr, "\r%s: %s / %s", name, formatSize(sent), formatSize(total))

			if sent == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	_, err = folder.Upload(ctx, name, f, info.Size(), policy, opts)

	return err
}

func runCancelUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := newDriveClient(ctx, buildLogger())
	if err != nil {
		return err
	}

	remotePath, _ := cmd.Flags().GetString("to") //nolint:errcheck // flag registered above

	folder, err := resolveFolder(ctx, client, remotePath)
	if err != nil {
		return err
	}

	found, err := client.CancelPersistedUpload(ctx, folder.ID, args[0])
	if err != nil {
		return err
	}

	if !found {
		statusf(flagQuiet, "No persisted upload session for %s\n", args[0])

		return nil
	}

	statusf(flagQuiet, "Canceled upload session for %s\n", args[0])

	return nil
}
