package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docmind/internal/ai"
	"docmind/internal/app"
)

func ingestCmd(flags *rootFlags) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Extract, chunk and embed a file into the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file failed: %w", err)
			}
			if mimeType == "" {
				mimeType = mime.TypeByExtension(filepath.Ext(args[0]))
			}

			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			stderr := cmd.ErrOrStderr()
			doc, err := a.Ingest.Ingest(cmd.Context(), app.Upload{
				Name:     filepath.Base(args[0]),
				MimeType: mimeType,
				Data:     data,
			}, func(ev app.ProgressEvent) {
				if ev.Total > 0 {
					fmt.Fprintf(stderr, "[%s] %s (%d/%d)\n", ev.Stage, ev.Message, ev.Current, ev.Total)
					return
				}
				fmt.Fprintf(stderr, "[%s] %s\n", ev.Stage, ev.Message)
			})
			if err != nil {
				if doc != nil {
					return fmt.Errorf("ingest document %d failed: %w", doc.ID, err)
				}
				return fmt.Errorf("ingest failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "document %d ingested: %s (%d chunks)\n", doc.ID, doc.Name, doc.ChunkCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "declared MIME type (default: guessed from the extension)")
	return cmd
}

func askCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the ingested documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			answer, err := a.Answer.Answer(cmd.Context(), strings.Join(args, " "), []ai.Turn{})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Text)
			if len(answer.Sources) > 0 {
				fmt.Fprintf(out, "\nSources: %s\n", strings.Join(answer.Sources, ", "))
			}
			return nil
		},
	}
}

func documentsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List or delete ingested documents",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.Documents.List()
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no documents")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCHUNKS\tUPLOADED")
			for _, d := range docs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", d.ID, d.Name, d.Status, d.ChunkCount, d.UploadedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid document id %q", args[0])
			}

			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Documents.Delete(cmd.Context(), uint(id)); err != nil {
				if errors.Is(err, app.ErrDocumentNotFound) {
					return fmt.Errorf("document %d not found", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %d deleted\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}

func seedAdminCmd(flags *rootFlags) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin account unless the email is already registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.Auth.SeedAdmin(name, email, password)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", email)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already registered\n", email)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
