package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"weft/internal/answer"
	"weft/internal/briefing"
	"weft/internal/feed"
	"weft/internal/filter"
	"weft/internal/scorer"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch all feeds into the store and queue scoring",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

		// Initialize Store (CLIENT MODE - Redis Only)
		st := openStore(cfg, cmd, false)
		defer st.Close()

		ingester := feed.NewIngester(
			feed.NewRSSFetcher(cfg.UserAgent, feedTimeout, logger),
			st, cfg.EnabledSources(), logger,
		)
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		report, err := ingester.Refresh(ctx)
		if err != nil {
			logger.Fatal("Refresh failed", zap.Error(err))
		}
		fmt.Printf("Fetched %d articles (%d sources failed)\n", report.Fetched, report.Failed)
	},
}

var queueOnly bool

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score every stored article that has no score yet",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		st := openStore(cfg, cmd, false)
		defer st.Close()

		ctx := context.Background()
		if queueOnly {
			id, err := st.EnqueueScoring(ctx)
			if err != nil {
				logger.Fatal("Failed to queue scoring", zap.Error(err))
			}
			logger.Info("Scoring queued", zap.String("job_id", id.String()))
			return
		}

		articles, err := st.ListArticles(ctx, 0)
		if err != nil {
			logger.Fatal("Failed to list articles", zap.Error(err))
		}
		scores, err := st.Scores(ctx)
		if err != nil {
			logger.Fatal("Failed to load scores", zap.Error(err))
		}

		sc := scorer.New(newLLM(cfg), st, logger, scorer.WithInterests(cfg.Interests))
		report := sc.Run(ctx, articles, scores)
		fmt.Printf("Scored %d of %d unscored articles in %d/%d batches\n",
			report.Scored, report.Unscored, report.BatchesDone, report.Batches)
		if report.Err != nil {
			logger.Fatal("Scoring stopped early", zap.Error(report.Err))
		}
	},
}

var (
	listFilter string
	listQuery  string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the ranked article view",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		st := openStore(cfg, cmd, false)
		defer st.Close()

		ctx := context.Background()
		articles, err := st.ListArticles(ctx, 0)
		if err != nil {
			logger.Fatal("Failed to list articles", zap.Error(err))
		}
		scores, err := st.Scores(ctx)
		if err != nil {
			logger.Fatal("Failed to load scores", zap.Error(err))
		}

		visible := filter.Apply(articles, scores, filter.Options{
			Mode:      filter.ParseMode(listFilter),
			Threshold: cfg.Threshold,
			Search:    listQuery,
		})
		if listLimit > 0 && len(visible) > listLimit {
			visible = visible[:listLimit]
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tSOURCE\tDATE\tTITLE")
		for _, a := range visible {
			score := "-"
			if s, ok := scores.Get(a.ID); ok {
				score = fmt.Sprint(s)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", score, a.Source, a.PublishedAt.Format("Jan 02 15:04"), a.Title)
		}
		tw.Flush()

		if answer.IsQuestion(listQuery) {
			fmt.Printf("\nLooks like a question. Try: weft ask %q\n", listQuery)
		}
	},
}

var briefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Print today's briefing of the top scored articles",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		st := openStore(cfg, cmd, false)
		defer st.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		res, err := briefing.NewGenerator(st, newLLM(cfg), logger).Generate(ctx)
		if err != nil {
			logger.Fatal("Briefing failed", zap.Error(err))
		}
		if res.Empty() {
			fmt.Printf("No articles published on %s yet.\n", res.Day)
			return
		}

		fmt.Printf("Briefing for %s (%d articles", res.Day, len(res.Articles))
		if res.Cached {
			fmt.Print(", cached")
		}
		fmt.Printf(")\n\n%s\n", res.Text)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the stored articles",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		st := openStore(cfg, cmd, false)
		defer st.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		res, err := answer.NewEngine(st, newLLM(cfg), logger).Ask(ctx, strings.Join(args, " "))
		if errors.Is(err, answer.ErrNoRelevantSource) {
			fmt.Println("No relevant articles found for this question. Try different keywords.")
			return
		}
		if err != nil {
			logger.Fatal("Answer failed", zap.Error(err))
		}

		fmt.Printf("%s\n\nSources:\n", res.Answer)
		for i, a := range res.Sources {
			fmt.Printf("  [%d] %s (%s)\n      %s\n", i+1, a.Title, a.Source, a.Link)
		}
	},
}

func init() {
	scoreCmd.Flags().BoolVar(&queueOnly, "queue", false, "Only queue a job for the server's worker")

	listCmd.Flags().StringVar(&listFilter, "filter", string(filter.ModeSmart), "View: smart, top, unread, bookmarked or discover")
	listCmd.Flags().StringVarP(&listQuery, "q", "q", "", "Search title, description and source")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 30, "Maximum rows to print (0 for all)")
}
