package bounty

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CommandKind tags a parsed comment command. Downstream code switches on the
// kind, never on the raw comment text.
type CommandKind int

const (
	// CommandCreate funds a bounty directly: "/bounty <amount> <currency>".
	CommandCreate CommandKind = iota
	// CommandCreatePool routes the bounty through a shared pool:
	// "/bounty pool <amount> <currency>".
	CommandCreatePool
	// CommandClaim claims a funded bounty with a PR: "/claim #123".
	CommandClaim
	// CommandStatus asks the bot to report the bounty status on the issue.
	CommandStatus
	// CommandRequest is a bare "/bounty" with no amount: a request for
	// someone to fund the issue.
	CommandRequest
)

// Command is a typed comment command.
type Command struct {
	Kind     CommandKind
	Amount   decimal.Decimal
	Currency Currency
	PRNumber int
}

// botMention is the handle users address for status checks.
const botMention = "@octobounty"

var (
	claimPattern  = regexp.MustCompile(`^/claim\s+#(\d+)$`)
	poolPattern   = regexp.MustCompile(`^/bounty\s+pool\s+(\S+)\s+(\S+)$`)
	createPattern = regexp.MustCompile(`^/bounty\s+(\S+)\s+(\S+)$`)
	barePattern   = regexp.MustCompile(`^/bounty$`)

	// Fixed-precision decimal: integer part plus at most 8 fractional digits.
	amountPattern = regexp.MustCompile(`^\d+(\.\d{1,8})?$`)
)

// ParseCommand turns free-text comment content into a typed command. It
// returns nil for anything that is not a recognized command; the caller treats
// nil as "not a command", not as an error. Patterns are tried most specific
// first.
func ParseCommand(text string) *Command {
	trimmed := strings.TrimSpace(text)

	if m := claimPattern.FindStringSubmatch(trimmed); m != nil {
		pr, err := strconv.Atoi(m[1])
		if err != nil || pr <= 0 {
			return nil
		}
		return &Command{Kind: CommandClaim, PRNumber: pr}
	}

	if strings.Contains(strings.ToLower(trimmed), botMention+" status") {
		return &Command{Kind: CommandStatus}
	}

	if m := poolPattern.FindStringSubmatch(trimmed); m != nil {
		amount, currency, ok := parseAmountCurrency(m[1], m[2])
		if !ok {
			return nil
		}
		return &Command{Kind: CommandCreatePool, Amount: amount, Currency: currency}
	}

	if m := createPattern.FindStringSubmatch(trimmed); m != nil {
		amount, currency, ok := parseAmountCurrency(m[1], m[2])
		if !ok {
			return nil
		}
		return &Command{Kind: CommandCreate, Amount: amount, Currency: currency}
	}

	if barePattern.MatchString(trimmed) {
		return &Command{Kind: CommandRequest}
	}

	return nil
}

// parseAmountCurrency validates the amount and currency tokens of a funding
// command. Amounts outside [1, 10^6] and unknown or non-uppercase currency
// symbols make the whole comment unrecognized.
func parseAmountCurrency(amountStr, currencyStr string) (decimal.Decimal, Currency, bool) {
	if !amountPattern.MatchString(amountStr) {
		return decimal.Decimal{}, "", false
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return decimal.Decimal{}, "", false
	}
	if amount.Cmp(minAmount) < 0 || amount.Cmp(maxAmount) > 0 {
		return decimal.Decimal{}, "", false
	}
	currency, ok := ParseCurrency(currencyStr)
	if !ok {
		return decimal.Decimal{}, "", false
	}
	return amount, currency, true
}
