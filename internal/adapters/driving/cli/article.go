package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
)

var articleCmd = &cobra.Command{
	Use:   "article",
	Short: "Inspect and manage stored articles",
}

var articleShowCmd = &cobra.Command{
	Use:   "show <locator>",
	Short: "Show formatted article content",
	Args:  cobra.ExactArgs(1),
	RunE:  runArticleShow,
}

var articleReadCmd = &cobra.Command{
	Use:   "read <locator>",
	Short: "Mark an article as read",
	Args:  cobra.ExactArgs(1),
	RunE:  runArticleRead,
}

var articleBookmarkCmd = &cobra.Command{
	Use:   "bookmark <locator>",
	Short: "Bookmark an article",
	Args:  cobra.ExactArgs(1),
	RunE:  runArticleBookmark,
}

var (
	flagField        string
	flagHTML         bool
	flagUnread       bool
	flagUnbookmarked bool
)

func init() {
	articleShowCmd.Flags().StringVar(&flagField, "field", string(domain.FieldBody), "field to show (body, summary, critical_analysis, source_analysis)")
	articleShowCmd.Flags().BoolVar(&flagHTML, "html", false, "print the styled HTML instead of plain text")
	articleReadCmd.Flags().BoolVar(&flagUnread, "undo", false, "mark as unread instead")
	articleBookmarkCmd.Flags().BoolVar(&flagUnbookmarked, "remove", false, "remove the bookmark instead")

	articleCmd.AddCommand(articleShowCmd)
	articleCmd.AddCommand(articleReadCmd)
	articleCmd.AddCommand(articleBookmarkCmd)
	rootCmd.AddCommand(articleCmd)
}

func runArticleShow(cmd *cobra.Command, args []string) error {
	field, err := domain.ParseField(flagField)
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ctx := cmd.Context()

	article, err := eng.articles.GetByLocator(ctx, args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no stored article for %s", args[0])
		}
		return fmt.Errorf("loading article: %w", err)
	}

	cmd.Printf("%s\n", article.Title)
	if article.Topic != "" {
		cmd.Printf("Topic: %s\n", article.Topic)
	}
	if !article.PublishedAt.IsZero() {
		cmd.Printf("Published: %s\n", article.PublishedAt.Format("2006-01-02 15:04"))
	}
	cmd.Println()

	content, err := eng.content.FormattedContent(ctx, article.ID, field)
	if err != nil {
		return fmt.Errorf("formatting %s: %w", field, err)
	}

	switch {
	case flagHTML && content.HTML != "":
		cmd.Println(content.HTML)
	case content.Placeholder:
		cmd.Println(content.Plain)
	default:
		if content.Degraded {
			cmd.Println("(formatting unavailable, showing plain text)")
		}
		cmd.Println(content.Plain)
	}
	return nil
}

func runArticleRead(cmd *cobra.Command, args []string) error {
	return setArticleFlag(cmd, args[0], func(eng *engine, id string) error {
		return eng.articles.MarkRead(cmd.Context(), id, !flagUnread)
	})
}

func runArticleBookmark(cmd *cobra.Command, args []string) error {
	return setArticleFlag(cmd, args[0], func(eng *engine, id string) error {
		return eng.articles.SetBookmarked(cmd.Context(), id, !flagUnbookmarked)
	})
}

// setArticleFlag resolves a locator and applies one user-state update.
func setArticleFlag(cmd *cobra.Command, locator string, update func(*engine, string) error) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	article, err := eng.articles.GetByLocator(cmd.Context(), locator)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no stored article for %s", locator)
		}
		return fmt.Errorf("loading article: %w", err)
	}

	if err := update(eng, article.ID); err != nil {
		return fmt.Errorf("updating article: %w", err)
	}
	cmd.Println("Updated.")
	return nil
}
