// cmd/curator/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/apiclient"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/app"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/config"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/creator"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/storage"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

type command struct {
	usage string
	// catalog commands load products and colours before running
	catalog bool
	run     func(ctx context.Context, st *app.State, args []string, out io.Writer) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"products":   {"products [-category C,..] [-collection C,..] [-weight W,..] [-gender G] [-search Q] [-page N] [-images]", true, runProducts},
		"categories": {"categories [-all] [-gender G]", true, runCategories},
		"save":       {"save STYLE COLOUR...", true, runSave},
		"remove":     {"remove STYLE", false, runRemove},
		"clear":      {"clear", false, runClear},
		"saved":      {"saved", false, runSaved},
		"publish":    {"publish [STYLE...]", false, runPublish},
		"published":  {"published", false, runPublished},
		"mode":       {"mode [admin|creator|toggle]", false, runMode},
		"colors":     {"colors STYLE", true, runColors},
		"sizes":      {"sizes STYLE [COLOUR]", false, runSizes},
		"select":     {"select STYLE COLOUR...", true, runSelect},
		"artwork":    {"artwork [-model FILE|URL] [-logo FILE|URL]", false, runArtwork},
		"generate":   {"generate PROMPT...", false, runGenerate},
		"images":     {"images [-clear]", false, runImages},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "curator:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return errors.New("no command given")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg := config.LoadClient()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	cfg.Log.Apply(logger)
	log := logrus.NewEntry(logger)

	backend, err := storage.OpenSQLite(cfg.Client.StoreDSN)
	if err != nil {
		return err
	}
	defer backend.Close()

	client := apiclient.New(cfg.Client.APIBaseURL,
		apiclient.WithMaxRetries(cfg.Client.MaxRetries),
		apiclient.WithLogger(log),
	)
	st := app.New(client, backend, log)
	defer st.Close()

	if cmd.catalog {
		if err := st.Load(ctx); err != nil {
			return err
		}
	} else {
		st.Store.Sync(ctx)
	}
	return cmd.run(ctx, st, args[1:], out)
}

func usage(out io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, "usage: curator <command> [flags]")
	for _, name := range names {
		fmt.Fprintln(out, "  "+commands[name].usage)
	}
}

// listFlag collects comma-separated values; the flag may repeat.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func runProducts(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	var categories, collections, weights listFlag
	fs := newFlags("products")
	fs.Var(&categories, "category", "product types")
	fs.Var(&collections, "collection", "core ranges")
	fs.Var(&weights, "weight", "product weights")
	gender := fs.String("gender", "", "gender filter (admin) or gender category (creator)")
	search := fs.String("search", "", "name or style code")
	page := fs.Int("page", 1, "page number")
	images := fs.Bool("images", false, "prefetch and print primary images")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e := st.Engine
	if e.Mode() == models.UserModeCreator {
		e.SetGenderCategory(*gender)
	} else {
		e.SetGender(*gender)
		e.SetCollections(collections...)
		e.SetWeights(weights...)
	}
	e.SetCategories(categories...)
	e.SetSearch(*search)
	e.SetPage(*page)

	result := e.Page()
	if *images {
		if _, err := st.Images.PrefetchPage(ctx, result.Data); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STYLE\tNAME\tTYPE\tGENDER\tRANGE")
	for _, p := range result.Data {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.StyleCode, p.StyleName, p.ProductType, p.Gender, p.CoreRange)
		if *images {
			if img, ok := st.Images.Primary(p.StyleCode); ok {
				fmt.Fprintf(w, "\t%s\t\t\t\n", img.URL())
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s mode, page %d of %d, %d products\n", e.Mode(), result.Page, max(1, result.TotalPages), result.Total)
	if cats := e.SelectedCategories(); len(cats) > 0 {
		fmt.Fprintf(out, "categories: %s\n", strings.Join(cats, ", "))
	}
	return nil
}

func runCategories(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	fs := newFlags("categories")
	all := fs.Bool("all", false, "include empty categories")
	gender := fs.String("gender", "", "gender filter (admin) or gender category (creator)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e := st.Engine
	creatorMode := e.Mode() == models.UserModeCreator
	if creatorMode {
		e.SetGenderCategory(*gender)
	} else {
		e.SetGender(*gender)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range e.CategoryCounts(*all) {
		fmt.Fprintf(w, "%s\t%d\n", c.Name, c.Count)
	}
	if creatorMode {
		fmt.Fprintln(w, "\t")
		for _, g := range e.GenderStats() {
			fmt.Fprintf(w, "%s\t%d\n", g.Gender, g.Count)
		}
	}
	return w.Flush()
}

func catalogProduct(st *app.State, styleCode string) (models.Product, error) {
	p, ok := st.Product(styleCode)
	if !ok {
		return models.Product{}, fmt.Errorf("style %s is not in the catalog", styleCode)
	}
	return p, nil
}

func runSave(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	if len(args) < 2 {
		return errors.New("usage: " + commands["save"].usage)
	}
	p, err := catalogProduct(st, args[0])
	if err != nil {
		return err
	}
	if err := st.SaveSelection(ctx, p, args[1:]); err != nil {
		return err
	}
	fmt.Fprintf(out, "saved %s %s: %s\n", p.StyleCode, p.StyleName, strings.Join(args[1:], ", "))
	return nil
}

func runRemove(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: " + commands["remove"].usage)
	}
	if err := st.Store.RemoveProduct(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(out, "removed %s\n", args[0])
	return nil
}

func runClear(ctx context.Context, st *app.State, _ []string, out io.Writer) error {
	if err := st.ClearAll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "cleared saved products")
	return nil
}

func runSaved(ctx context.Context, st *app.State, _ []string, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STYLE\tNAME\tTYPE\tCOLOURS\tSAVED")
	for _, p := range st.Store.SavedProducts(ctx) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.StyleCode, p.StyleName, p.ProductType,
			strings.Join(p.SelectedColors, ", "), p.Timestamp.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runPublish(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	published, err := st.PublishSaved(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d products published\n", len(published))
	return nil
}

func runPublished(ctx context.Context, st *app.State, _ []string, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STYLE\tNAME\tCOLOURS\tSTATUS")
	for _, e := range st.Summary(ctx) {
		status := "saved"
		if e.Published {
			status = "published " + e.PublishedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.StyleCode, e.StyleName, strings.Join(e.SelectedColors, ", "), status)
	}
	return w.Flush()
}

func runMode(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(out, st.Mode(ctx))
		return nil
	}
	if args[0] == "toggle" {
		mode, err := st.ToggleMode(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "switched to %s mode\n", mode)
		return nil
	}
	mode := models.UserMode(args[0])
	if err := st.SetMode(ctx, mode); err != nil {
		return err
	}
	fmt.Fprintf(out, "switched to %s mode\n", mode)
	return nil
}

func runColors(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: " + commands["colors"].usage)
	}
	styleCode := args[0]
	mode := st.Mode(ctx)
	available := st.Creator.AvailableColors(ctx, mode, styleCode)

	var saved *models.SavedProduct
	if p, ok := st.Store.SavedProduct(ctx, styleCode); ok {
		saved = &p
	}
	selected := make(map[string]bool)
	for _, c := range creator.InitialSelection(mode, styleCode, saved, st.Store.Workflow(ctx), available) {
		selected[c] = true
	}

	if len(available) == 0 {
		fmt.Fprintf(out, "no colours available for %s in %s mode\n", styleCode, mode)
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range available {
		mark := " "
		if selected[c] {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\n", mark, c, st.Swatch(c))
	}
	return w.Flush()
}

func runSizes(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: " + commands["sizes"].usage)
	}
	colour := ""
	if len(args) == 2 {
		colour = args[1]
	}
	sizes := st.Catalog.ProductSizes(ctx, args[0], colour)
	if len(sizes) == 0 {
		fmt.Fprintln(out, "no sizes found")
		return nil
	}
	fmt.Fprintln(out, strings.Join(sizes, " "))
	return nil
}

func runSelect(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	if len(args) < 2 {
		return errors.New("usage: " + commands["select"].usage)
	}
	p, err := catalogProduct(st, args[0])
	if err != nil {
		return err
	}
	workflow, err := st.Creator.SelectProduct(ctx, p, args[1:])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "selected %s %s in %s\n", workflow.SelectedProduct.StyleCode,
		workflow.SelectedProduct.StyleName, strings.Join(workflow.SelectedColors, ", "))
	return nil
}

func runArtwork(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	fs := newFlags("artwork")
	model := fs.String("model", "", "model (head) image file or URL")
	logo := fs.String("logo", "", "logo image file or URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	modelRef, err := artworkRef(*model)
	if err != nil {
		return err
	}
	logoRef, err := artworkRef(*logo)
	if err != nil {
		return err
	}
	workflow, err := st.Creator.AttachArtwork(ctx, modelRef, logoRef)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "artwork attached to %s, ready to generate: %t\n", workflow.SelectedProduct.StyleCode, creator.Ready(workflow))
	return nil
}

// artworkRef keeps URLs and turns local files into data URLs.
func artworkRef(ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || utils.IsDataURL(ref) {
		return ref, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("failed to read artwork: %w", err)
	}
	if len(data) > creator.MaxArtworkBytes {
		return "", creator.ErrArtworkTooLarge
	}
	return utils.EncodeDataURL(http.DetectContentType(data), data), nil
}

func runGenerate(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	gen, err := st.Creator.Generate(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, gen.Output.Message)
	fmt.Fprintf(out, "id %s (%s)\n", gen.Entry.ID, gen.Output.Kind)
	if len(gen.Output.Assets) == 0 {
		fmt.Fprintln(out, preview(gen.Output.Image))
	}
	for _, a := range gen.Output.Assets {
		fmt.Fprintf(out, "%s\t%s\n", a.Color, a.URL)
	}
	return nil
}

func runImages(ctx context.Context, st *app.State, args []string, out io.Writer) error {
	fs := newFlags("images")
	clearHistory := fs.Bool("clear", false, "delete the image history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *clearHistory {
		if err := st.Store.ClearGeneratedImages(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "image history cleared")
		return nil
	}

	groups := creator.GroupByStyle(st.Store.GeneratedImages(ctx))
	if len(groups) == 0 {
		fmt.Fprintln(out, "no generated images yet")
		return nil
	}
	for _, g := range groups {
		fmt.Fprintf(out, "%s %s (%d)\n", g.StyleCode, g.StyleName, len(g.Images))
		for _, img := range g.Images {
			fmt.Fprintf(out, "  %s  %s  %q\n    %s\n", img.CreatedAt.Local().Format("2006-01-02 15:04"),
				strings.Join(img.SelectedColors, ","), img.Prompt, preview(img.Image))
		}
	}
	return nil
}

func preview(image string) string {
	if utils.IsDataURL(image) && len(image) > 64 {
		return image[:64] + "..."
	}
	return image
}
