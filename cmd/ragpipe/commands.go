package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smallnest/ragpipe/graph"
	"github.com/smallnest/ragpipe/prebuilt"
)

func newIndexCommand(a *app) *cobra.Command {
	var show int

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load the corpus into the document store",
		Long: `Load every document of the configured corpus into the document store,
embedding them first in embedding mode, and print the first documents.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, docs, n, err := a.index(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printHeader(w, "documents loaded: %d", n)
			for i := range min(show, len(docs)) {
				fmt.Fprintln(w)
				printDocument(w, docs[i])
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&show, "show", 1, "number of loaded documents to print")
	return cmd
}

func newQueryCommand(a *app) *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Answer a question from the corpus",
		Long: `Index the corpus, retrieve the documents most relevant to the question and
ask the language model to answer from them. Without a question argument, questions
are read from standard input, one per line.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, _, n, err := a.index(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("indexed %d documents", n)

			r, err := a.newRAG(s)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			ask := func(question string) error {
				answer, err := r.Query(ctx, question)
				if err != nil {
					return err
				}
				printReplies(w, answer.Replies)
				if showSources {
					printHeader(w, "sources:")
					printSources(w, answer.Documents)
				}
				return nil
			}

			if len(args) == 1 {
				return ask(args[0])
			}
			return readQuestions(cmd.InOrStdin(), func(q string) {
				if err := ask(q); err != nil {
					a.logger.Error("query %q failed: %v", truncate(q, 40), err)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&showSources, "sources", false, "print the retrieved documents after each answer")
	return cmd
}

func readQuestions(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		fn(q)
	}
	return scanner.Err()
}

func newDrawCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Print the question answering pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newRAG(a.newStore())
			if err != nil {
				return err
			}
			out, err := draw(r, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "output format (mermaid, dot, ascii)")
	return cmd
}

func draw(r *prebuilt.RAG, format string) (string, error) {
	exporter := graph.NewExporter(r.Pipeline())
	switch format {
	case "mermaid":
		return exporter.DrawMermaid(), nil
	case "dot":
		return exporter.DrawDOT(), nil
	case "ascii":
		return exporter.DrawASCII(), nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}
