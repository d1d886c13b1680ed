package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/adapter/http/middleware"
	"github.com/iho/splitledger/internal/domain"
)

func groupPath(groupID, suffix string) string {
	return "/api/v1/groups/" + url.PathEscape(groupID) + suffix
}

// fetch GETs path and either prints the raw JSON or hands the decoded value
// to render.
func fetch[T any](cmd *cobra.Command, opts *options, path string, render func(io.Writer, T)) error {
	var raw json.RawMessage
	if err := opts.client().get(cmd.Context(), path, &raw); err != nil {
		return err
	}
	if opts.jsonOut {
		return printJSON(cmd.OutOrStdout(), raw)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	render(cmd.OutOrStdout(), v)
	return nil
}

func ledgerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <group-id>",
		Short: "Show members, balances, debts and integrity issues of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if err := opts.client().get(cmd.Context(), groupPath(args[0], "/ledger"), &raw); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func balancesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balances <group-id>",
		Short: "List member balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetch(cmd, opts, groupPath(args[0], "/balances"), renderBalances)
		},
	}
}

func renderBalances(w io.Writer, balances []*dto.BalanceResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MEMBER\tPAID\tOWED\tNET")
	for _, b := range balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.MemberID, b.TotalPaid.StringFixed(2), b.TotalOwed.StringFixed(2), b.Net.StringFixed(2))
	}
	_ = tw.Flush()
}

func debtsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "debts <group-id>",
		Short: "List simplified net debts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetch(cmd, opts, groupPath(args[0], "/debts"), renderDebts)
		},
	}
}

func renderDebts(w io.Writer, debts []*dto.DebtResponse) {
	if len(debts) == 0 {
		fmt.Fprintln(w, "All settled up.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tAMOUNT")
	for _, d := range debts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.FromMemberID, d.ToMemberID, d.Amount.StringFixed(2))
	}
	_ = tw.Flush()
}

func settlementsCmd(opts *options) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "settlements <group-id>",
		Short: "List recorded settlements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("%s?limit=%d&offset=%d", groupPath(args[0], "/settlements"), limit, offset)
			return fetch(cmd, opts, path, renderSettlements)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of settlements")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of settlements to skip")
	return cmd
}

func renderSettlements(w io.Writer, settlements []*dto.SettlementResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFROM\tTO\tAMOUNT\tSTATUS\tCHAIN\tTX")
	for _, s := range settlements {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.FromMemberID, s.ToMemberID, s.Amount.StringFixed(2), s.Status, s.ChainName, truncate(s.TransactionHash, 14))
	}
	_ = tw.Flush()
}

func expenseCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Expense operations",
	}
	cmd.AddCommand(expenseAddCmd(opts))
	return cmd
}

func expenseAddCmd(opts *options) *cobra.Command {
	var (
		req          dto.CreateExpenseRequest
		amount       string
		participants []string
	)

	cmd := &cobra.Command{
		Use:   "add <group-id>",
		Short: "Record an expense split equally between participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			req.Amount = amt
			req.Participants = participants

			var resp dto.ExpenseResponse
			if err := opts.client().post(cmd.Context(), groupPath(args[0], "/expenses"), &req, nil, &resp); err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Expense %s: %s %s paid by %s\n", resp.ID, resp.Amount.StringFixed(2), resp.Currency, resp.PaidBy)
			for _, s := range resp.Splits {
				fmt.Fprintf(out, "  %s owes %s\n", s.MemberID, s.ShareAmount.StringFixed(2))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.PaidBy, "paid-by", "", "Member who paid")
	cmd.Flags().StringVar(&amount, "amount", "", "Expense amount")
	cmd.Flags().StringVar(&req.Description, "description", "", "Expense description")
	cmd.Flags().StringVar(&req.Currency, "currency", "", "Expense currency")
	cmd.Flags().StringSliceVar(&participants, "participants", nil, "Members sharing the expense (default: all members)")
	_ = cmd.MarkFlagRequired("paid-by")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func settleCmd(opts *options) *cobra.Command {
	var (
		req            dto.SettleDebtRequest
		amount         string
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "settle <group-id>",
		Short: "Settle the net debt between two members on-chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount != "" {
				amt, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", amount, err)
				}
				req.Amount = &amt
			}
			if err := req.Validate(); err != nil {
				return err
			}
			if idempotencyKey == "" {
				idempotencyKey = ulid.Make().String()
			}
			headers := map[string]string{middleware.IdempotencyKeyHeader: idempotencyKey}

			var outcome dto.OutcomeResponse
			err := opts.client().post(cmd.Context(), groupPath(args[0], "/settlements"), &req, headers, &outcome)
			if err != nil && !decodeBody(err, &outcome) {
				return err
			}
			if outcome.Status == "" {
				return err
			}

			if opts.jsonOut {
				if perr := printJSON(cmd.OutOrStdout(), outcome); perr != nil {
					return perr
				}
			} else {
				renderOutcome(cmd.OutOrStdout(), &outcome, idempotencyKey)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&req.FromMemberID, "from", "", "Paying member")
	cmd.Flags().StringVar(&req.ToMemberID, "to", "", "Receiving member")
	cmd.Flags().StringVar(&req.Asset, "asset", "", "Asset to transfer (server default when empty)")
	cmd.Flags().StringVar(&amount, "amount", "", "Expected debt amount; the request is rejected if the debt has changed")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key (generated when empty)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func renderOutcome(w io.Writer, o *dto.OutcomeResponse, key string) {
	fmt.Fprintf(w, "Status: %s (step %s)\n", o.Status, o.Step)
	if o.Debt != nil {
		fmt.Fprintf(w, "Debt: %s -> %s %s\n", o.Debt.FromMemberID, o.Debt.ToMemberID, o.Debt.Amount.StringFixed(2))
	}
	fmt.Fprintf(w, "Available: %s\n", o.Available.StringFixed(2))
	if len(o.SourceChains) > 0 {
		names := make([]string, len(o.SourceChains))
		for i, c := range o.SourceChains {
			names[i] = domain.ChainName(c)
		}
		fmt.Fprintf(w, "Source chains: %s\n", strings.Join(names, ", "))
	}
	if o.TxHash != "" {
		fmt.Fprintf(w, "Transaction: %s\n", o.TxHash)
	}
	if o.ExplorerURL != "" {
		fmt.Fprintf(w, "Explorer: %s\n", o.ExplorerURL)
	}
	if o.Reason != "" {
		fmt.Fprintf(w, "Reason: %s\n", o.Reason)
	}
	if o.AttemptID != "" {
		fmt.Fprintf(w, "Attempt: %s\n", o.AttemptID)
	}
	if o.Status == string(domain.OutcomeTransferUnknown) {
		fmt.Fprintln(w, "The transfer may have been executed. Check the gateway before resolving the attempt.")
	}
	fmt.Fprintf(w, "Idempotency key: %s\n", key)
}

func attemptCmd(opts *options) *cobra.Command {
	var (
		from, to string
		resolve  bool
	)

	cmd := &cobra.Command{
		Use:   "attempt <group-id>",
		Short: "Show the last settlement attempt between two members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"from": {from}, "to": {to}}
			path := groupPath(args[0], "/settlements/attempts?"+q.Encode())
			if resolve {
				if err := opts.client().delete(cmd.Context(), path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Attempt between %s and %s resolved.\n", from, to)
				return nil
			}
			return fetch(cmd, opts, path, renderAttempt)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Paying member")
	cmd.Flags().StringVar(&to, "to", "", "Receiving member")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "Forget an attempt whose transfer has been reconciled")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func renderAttempt(w io.Writer, a dto.AttemptResponse) {
	fmt.Fprintf(w, "Step: %s (updated %s)\n", a.Step, a.UpdatedAt.Format("2006-01-02 15:04:05Z07:00"))
	if a.AttemptID != "" {
		fmt.Fprintf(w, "Attempt: %s\n", a.AttemptID)
	}
	if a.Debt != nil {
		fmt.Fprintf(w, "Debt: %s -> %s %s\n", a.Debt.FromMemberID, a.Debt.ToMemberID, a.Debt.Amount.StringFixed(2))
	}
	if a.TxHash != "" {
		fmt.Fprintf(w, "Transaction: %s\n", a.TxHash)
	}
	if a.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", a.Error)
	}
	if a.Unresolved {
		fmt.Fprintln(w, "Unresolved: new settlements for this pair are blocked until the attempt is resolved")
	}
}

func explorerURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explorer-url <chain-ref> <tx-hash>",
		Short: "Print the block explorer link for a settlement transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := domain.ExplorerTxURL(args[0], args[1])
			if link == "" {
				return fmt.Errorf("no explorer known for chain %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	if raw, ok := v.(json.RawMessage); ok {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		v = decoded
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
