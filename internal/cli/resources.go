package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/i18n"
	"github.com/tbourn/go-admin-console/internal/services"
)

var resourceTypes = []string{domain.ResourceArticles, domain.ResourceCategories, domain.ResourceUsers}

var views = map[string]view{
	domain.ResourceArticles:   {columns: []string{"id", "title", "status", "category", "updated_at"}},
	domain.ResourceCategories: {columns: []string{"id", "name", "slug", "articles_count"}},
	domain.ResourceUsers:      {columns: []string{"id", "name", "email", "role"}},
}

func listView(rt string) view {
	v := views[rt]
	v.rows, v.total = "items", "total"
	return v
}

func argResource(args []string) (string, error) {
	for _, rt := range resourceTypes {
		if args[0] == rt {
			return rt, nil
		}
	}
	return "", fmt.Errorf("unknown resource %q (want articles, categories or users)", args[0])
}

func argID(args []string) (int64, error) {
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args[1])
	}
	return id, nil
}

// authorize rejects signed-out operators before any request is made. Users
// are admin-only.
func (e *env) authorize(rt string) error {
	_, err := e.app.Auth.Authorize(rt == domain.ResourceUsers)
	return err
}

type listFlags struct {
	page, perPage int
	keyword       string
	categoryID    int64
	status        string
}

func newListCmd(e *env) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:       "list <articles|categories|users>",
		Short:     "List one page of records",
		Args:      cobra.ExactArgs(1),
		ValidArgs: resourceTypes,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := argResource(args)
			if err != nil {
				return err
			}
			page, err := e.list(cmd.Context(), rt, f)
			if err != nil {
				return explain(e.language(), err)
			}
			return render(cmd.OutOrStdout(), e.output, e.language(), page, listView(rt))
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.page, "page", 1, "page number")
	fl.IntVar(&f.perPage, "per-page", 10, "records per page (max 100)")
	fl.StringVar(&f.keyword, "keyword", "", "article title keyword")
	fl.Int64Var(&f.categoryID, "category-id", 0, "article category")
	fl.StringVar(&f.status, "status", "", "article status (draft, published, archived)")
	return cmd
}

func (e *env) list(ctx context.Context, rt string, f listFlags) (any, error) {
	if err := e.authorize(rt); err != nil {
		return nil, err
	}
	var (
		page any
		err  error
	)
	switch rt {
	case domain.ResourceArticles:
		page, err = e.app.Articles.List(ctx, services.ArticleFilter{
			Keyword: f.keyword, CategoryID: f.categoryID, Status: f.status, Page: f.page, PerPage: f.perPage,
		})
	case domain.ResourceCategories:
		page, err = e.app.Categories.List(ctx, f.page, f.perPage)
	default:
		page, err = e.app.Users.List(ctx, f.page, f.perPage)
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

func newGetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := argResource(args)
			if err != nil {
				return err
			}
			id, err := argID(args)
			if err != nil {
				return err
			}
			rec, err := e.get(cmd.Context(), rt, id)
			if err != nil {
				return explain(e.language(), err)
			}
			return render(cmd.OutOrStdout(), e.output, e.language(), rec, view{})
		},
	}
}

func (e *env) get(ctx context.Context, rt string, id int64) (any, error) {
	if err := e.authorize(rt); err != nil {
		return nil, err
	}
	var (
		rec any
		err error
	)
	switch rt {
	case domain.ResourceArticles:
		rec, err = e.app.Articles.Get(ctx, id)
	case domain.ResourceCategories:
		rec, err = e.app.Categories.Get(ctx, id)
	default:
		rec, err = e.app.Users.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func newCreateCmd(e *env) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create <resource> -f payload.yaml",
		Short: "Create a record from a YAML or JSON file ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := argResource(args)
			if err != nil {
				return err
			}
			rec, err := e.save(cmd, rt, 0, file)
			if err != nil {
				return explain(e.language(), err)
			}
			return render(cmd.OutOrStdout(), e.output, e.language(), rec, view{})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "payload file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newUpdateCmd(e *env) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update <resource> <id> -f payload.yaml",
		Short: "Replace a record from a YAML or JSON file ('-' reads stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := argResource(args)
			if err != nil {
				return err
			}
			id, err := argID(args)
			if err != nil {
				return err
			}
			rec, err := e.save(cmd, rt, id, file)
			if err != nil {
				return explain(e.language(), err)
			}
			return render(cmd.OutOrStdout(), e.output, e.language(), rec, view{})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "payload file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// save creates (id == 0) or updates record id from the payload in file.
func (e *env) save(cmd *cobra.Command, rt string, id int64, file string) (any, error) {
	if err := e.authorize(rt); err != nil {
		return nil, err
	}
	in := cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}
	ctx := cmd.Context()

	switch rt {
	case domain.ResourceArticles:
		var p domain.ArticleInput
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		if id == 0 {
			return e.app.Articles.Create(ctx, p)
		}
		return e.app.Articles.Update(ctx, id, p)
	case domain.ResourceCategories:
		var p domain.CategoryInput
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		if id == 0 {
			return e.app.Categories.Create(ctx, p)
		}
		return e.app.Categories.Update(ctx, id, p)
	default:
		var p domain.UserInput
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		if id == 0 {
			return e.app.Users.Create(ctx, p)
		}
		return e.app.Users.Update(ctx, id, p)
	}
}

// decodePayload reads YAML (JSON is a subset) and maps it onto out by the
// JSON field names the API uses.
func decodePayload(r io.Reader, out any) error {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func newDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := argResource(args)
			if err != nil {
				return err
			}
			id, err := argID(args)
			if err != nil {
				return err
			}
			if err := e.authorize(rt); err != nil {
				return explain(e.language(), err)
			}
			ctx := cmd.Context()
			switch rt {
			case domain.ResourceArticles:
				err = e.app.Articles.Delete(ctx, id)
			case domain.ResourceCategories:
				err = e.app.Categories.Delete(ctx, id)
			default:
				err = e.app.Users.Delete(ctx, id)
			}
			if err != nil {
				return explain(e.language(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T(e.language(), "common.deleted"))
			return nil
		},
	}
}

func newDashboardCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show record totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := e.app.Auth.Authorize(false)
			if err != nil {
				return explain(e.language(), err)
			}
			st, err := e.app.Dashboard.Stats(cmd.Context(), id.IsAdmin())
			if err != nil {
				return explain(e.language(), err)
			}
			return render(cmd.OutOrStdout(), e.output, e.language(), st, view{columns: []string{"articles", "categories", "users"}})
		},
	}
}
