package commands

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/hostfleet/hostfleet-cli/internal/api"
	"github.com/hostfleet/hostfleet-cli/internal/appctx"
	"github.com/hostfleet/hostfleet-cli/internal/output"
)

// NewAPICmd creates the api command for raw API access.
func NewAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api <verb> <path>",
		Short: "Raw API access",
		Long:  "Make raw authenticated requests to any Hostfleet endpoint. Useful for operations not covered by dedicated commands.",
	}

	cmd.AddCommand(
		newAPIGetCmd(),
		newAPIPostCmd(),
		newAPIPutCmd(),
		newAPIDeleteCmd(),
	)

	return cmd
}

func newAPIGetCmd() *cobra.Command {
	var jqExpr string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "GET request to the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			resp, err := app.API.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderAPIResponse(app, resp, jqExpr)
		},
	}

	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the response through a jq expression")

	return cmd
}

func newAPIPostCmd() *cobra.Command {
	var data, jqExpr string

	cmd := &cobra.Command{
		Use:   "post <path>",
		Short: "POST request to the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			body, err := parseBody(data)
			if err != nil {
				return err
			}

			resp, err := app.API.Post(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			return renderAPIResponse(app, resp, jqExpr)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body (required)")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the response through a jq expression")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func newAPIPutCmd() *cobra.Command {
	var data, jqExpr string

	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "PUT request to the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			body, err := parseBody(data)
			if err != nil {
				return err
			}

			resp, err := app.API.Put(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			return renderAPIResponse(app, resp, jqExpr)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body (required)")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the response through a jq expression")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func newAPIDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "DELETE request to the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			resp, err := app.API.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderAPIResponse(app, resp, "")
		},
	}
}

func parseBody(data string) (any, error) {
	if data == "" {
		return nil, output.ErrUsage("--data is required")
	}
	var body any
	if err := json.Unmarshal([]byte(data), &body); err != nil {
		return nil, output.ErrUsageHint(
			"Invalid JSON data",
			fmt.Sprintf("JSON parse error: %v", err),
		)
	}
	return body, nil
}

func renderAPIResponse(app *appctx.App, resp *api.Response, jqExpr string) error {
	if len(resp.Data) == 0 {
		return app.OK(nil, output.WithSummary(fmt.Sprintf("HTTP %d", resp.StatusCode)))
	}

	var data any
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		// Non-JSON body passes through as a string.
		return app.OK(string(resp.Data))
	}

	if jqExpr != "" {
		filtered, err := applyJQ(jqExpr, data)
		if err != nil {
			return err
		}
		data = filtered
	}

	return app.OK(data)
}

// applyJQ runs a jq expression over the decoded response. A single result
// is returned bare; multiple results come back as a list.
func applyJQ(expr string, input any) (any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, output.ErrUsageHint("Invalid jq expression", err.Error())
	}

	var results []any
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, output.ErrUsageHint("jq evaluation failed", err.Error())
		}
		results = append(results, v)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}
