package llm

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// =============================================================================
// Static Capabilities
// =============================================================================

// StaticCapabilities is a deterministic, zero-I/O capability backend.
//
// # Description
//
// Extraction runs keyword heuristics over the document, generation renders a
// per-contract-type Solidity template, and refinement applies fixed textual
// mitigations. The same input always yields the same output, which makes this
// backend suitable for offline demos, air-gapped deployments, and hermetic
// tests. It never touches the network or the filesystem.
//
// # Limitations
//
//   - Extraction quality is bounded by keyword matching; free-form phrasing
//     the heuristics don't recognize is silently dropped.
//   - Generation covers the known contract types and falls back to a generic
//     conditional-agreement template for everything else.
type StaticCapabilities struct {
	templates map[string]*template.Template
}

// NewStaticCapabilities builds the static backend. Template parsing happens
// once here; a parse failure is a programming error and panics at startup.
func NewStaticCapabilities() *StaticCapabilities {
	s := &StaticCapabilities{templates: make(map[string]*template.Template)}
	for name, body := range contractTemplates {
		s.templates[name] = template.Must(template.New(name).Parse(body))
	}
	return s
}

// Compile-time interface checks.
var (
	_ SchemaExtractor = (*StaticCapabilities)(nil)
	_ CodeGenerator   = (*StaticCapabilities)(nil)
	_ CodeRefiner     = (*StaticCapabilities)(nil)
)

// =============================================================================
// Extraction Heuristics
// =============================================================================

// contractTypeKeywords maps a contract type to the tokens that vote for it.
// Scoring is a plain count of keyword hits; ties break alphabetically so the
// result is stable across runs.
var contractTypeKeywords = map[string][]string{
	"rental":     {"rent", "lease", "landlord", "tenant", "deposit", "premises", "apartment"},
	"escrow":     {"escrow", "arbiter", "release", "refund", "held in trust", "beneficiary"},
	"sale":       {"sale", "purchase", "buyer", "seller", "goods", "delivery", "title"},
	"loan":       {"loan", "lender", "borrower", "interest", "repay", "principal", "collateral"},
	"employment": {"employ", "salary", "employee", "employer", "wage", "position", "work"},
}

// rolePairs lists the party roles each contract type implies, in the order
// the generated contract declares them.
var rolePairs = map[string][]string{
	"rental":     {"landlord", "tenant"},
	"escrow":     {"depositor", "beneficiary", "arbiter"},
	"sale":       {"seller", "buyer"},
	"loan":       {"lender", "borrower"},
	"employment": {"employer", "employee"},
	"generic":    {"party_a", "party_b"},
}

var (
	// amountPattern matches "1200 USD", "$500", "0.5 ETH", "1,200 dollars".
	amountPattern = regexp.MustCompile(`(?i)(?:\$\s*)?(\d[\d,]*(?:\.\d+)?)\s*(usd|eth|wei|gwei|dollars?|euros?|eur)?`)

	// datePattern matches ISO dates and "January 1, 2026" style dates.
	datePattern = regexp.MustCompile(`(?i)\b(\d{4}-\d{2}-\d{2}|(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4})\b`)

	// durationPattern matches "12 months", "90 days", "2 years".
	durationPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(day|week|month|year)s?\b`)

	// schedulePattern matches recurring payment language.
	schedulePattern = regexp.MustCompile(`(?i)\b(monthly|weekly|annually|yearly|quarterly|daily|upon completion|on completion|upfront|in advance)\b`)

	// moneyContextPattern matches a unitless number in payment context.
	moneyContextPattern = regexp.MustCompile(`(?i)\b(?:pays?|payment|price|fee|amount|deposit|rent|salary|cost|sum)\b[^.\n]{0,30}?(\d[\d,]*(?:\.\d+)?)`)

	// namedPartyPattern matches "between Alice and Bob" style clauses.
	namedPartyPattern = regexp.MustCompile(`(?i)between\s+([A-Z][\w.&' -]{0,40}?)\s+(?:\(.*?\)\s+)?and\s+([A-Z][\w.&' -]{0,40}?)(?:[,.;]|\s+(?:for|to|in|on|under|dated)\b)`)

	// obligationPattern flags sentences that carry an obligation or trigger.
	obligationPattern = regexp.MustCompile(`(?i)\b(must|shall|agrees? to|required to|obligated to|if |upon |in the event)\b`)
)

// Extract derives a ContractSchema from the document with keyword and regex
// heuristics. The typeHint wins when it names a known contract type.
func (s *StaticCapabilities) Extract(ctx context.Context, text string, typeHint string) (datatypes.ContractSchema, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.ContractSchema{}, &datatypes.ExtractionError{Backend: "static", Cause: err}
	}

	schema := datatypes.ContractSchema{
		ContractType: classifyContractType(text, typeHint),
	}
	schema.Parties = extractParties(text, schema.ContractType)
	schema.Financial = extractFinancial(text)
	schema.Temporal = extractTemporal(text)
	schema.Conditions = extractConditions(text)
	return schema, nil
}

// classifyContractType scores keyword hits per type. A typeHint naming a
// known type short-circuits the vote.
func classifyContractType(text string, typeHint string) string {
	hint := strings.ToLower(strings.TrimSpace(typeHint))
	if _, ok := rolePairs[hint]; ok && hint != "generic" {
		return hint
	}

	lower := strings.ToLower(text)
	bestType, bestScore := "generic", 0

	// Sorted iteration keeps tie-breaking deterministic.
	types := make([]string, 0, len(contractTypeKeywords))
	for t := range contractTypeKeywords {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		score := 0
		for _, kw := range contractTypeKeywords[t] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			bestType, bestScore = t, score
		}
	}
	return bestType
}

// extractParties pairs the contract type's canonical roles with any names
// found in a "between X and Y" clause.
func extractParties(text string, contractType string) []datatypes.Party {
	roles := rolePairs[contractType]
	if roles == nil {
		roles = rolePairs["generic"]
	}

	parties := make([]datatypes.Party, len(roles))
	for i, role := range roles {
		parties[i] = datatypes.Party{Role: role}
	}

	if m := namedPartyPattern.FindStringSubmatch(text); m != nil {
		parties[0].Identifier = strings.TrimSpace(m[1])
		if len(parties) > 1 {
			parties[1].Identifier = strings.TrimSpace(m[2])
		}
	}
	return parties
}

// extractFinancial prefers the first amount that names a unit ("1200 USD",
// "$500") so bare numbers like street addresses don't win. A unitless number
// is accepted only in payment context ("shall pay 500 per month").
func extractFinancial(text string) datatypes.FinancialTerms {
	var terms datatypes.FinancialTerms
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		if m[2] == "" && !strings.Contains(m[0], "$") {
			continue
		}
		terms.Amount = strings.ReplaceAll(m[1], ",", "")
		switch cur := strings.ToLower(m[2]); cur {
		case "dollars", "dollar", "":
			terms.Currency = "USD"
		case "euros", "euro", "eur":
			terms.Currency = "EUR"
		default:
			terms.Currency = strings.ToUpper(cur)
		}
		break
	}
	if terms.Amount == "" {
		if m := moneyContextPattern.FindStringSubmatch(text); m != nil {
			terms.Amount = strings.ReplaceAll(m[1], ",", "")
		}
	}
	if m := schedulePattern.FindString(text); m != "" {
		terms.PaymentSchedule = strings.ToLower(m)
	}
	return terms
}

func extractTemporal(text string) datatypes.TemporalTerms {
	var terms datatypes.TemporalTerms
	dates := datePattern.FindAllString(text, 2)
	if len(dates) > 0 {
		terms.StartDate = dates[0]
	}
	if len(dates) > 1 {
		terms.EndDate = dates[1]
	}
	if m := durationPattern.FindString(text); m != "" {
		terms.Duration = strings.ToLower(m)
	}
	return terms
}

// extractConditions keeps sentences that carry obligation language, trimmed
// and in document order.
func extractConditions(text string) []string {
	var conditions []string
	for _, sentence := range splitSentences(text) {
		if obligationPattern.MatchString(sentence) {
			conditions = append(conditions, strings.TrimSpace(sentence))
		}
		if len(conditions) >= 32 {
			break
		}
	}
	return conditions
}

// splitSentences is a crude period/newline splitter. Good enough for
// heuristic extraction; the OpenAI backend handles prose properly.
func splitSentences(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '\n' || r == ';'
	})
	out := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// Generation Templates
// =============================================================================

// templateData is the view rendered into the Solidity templates.
type templateData struct {
	ContractName string
	Roles        []string
	Amount       string
	Currency     string
	Schedule     string
	StartDate    string
	EndDate      string
	Duration     string
	Conditions   []string
}

// Generate renders the template matching the schema's contract type. Few-shot
// examples are ignored: static output must not vary with retrieval state.
func (s *StaticCapabilities) Generate(ctx context.Context, schema datatypes.ContractSchema, _ []Example) (datatypes.GeneratedCode, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.GeneratedCode{}, &datatypes.GenerationError{Backend: "static", Cause: err}
	}

	name := schema.ContractType
	tmpl, ok := s.templates[name]
	if !ok {
		name = "generic"
		tmpl = s.templates[name]
	}

	data := templateData{
		ContractName: contractName(name),
		Amount:       schema.Financial.Amount,
		Currency:     schema.Financial.Currency,
		Schedule:     schema.Financial.PaymentSchedule,
		StartDate:    schema.Temporal.StartDate,
		EndDate:      schema.Temporal.EndDate,
		Duration:     schema.Temporal.Duration,
		Conditions:   schema.Conditions,
	}
	for _, p := range schema.Parties {
		data.Roles = append(data.Roles, p.Role)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return datatypes.GeneratedCode{}, &datatypes.GenerationError{Backend: "static", Cause: err}
	}
	return datatypes.GeneratedCode{Source: b.String(), SolidityVersion: "0.8.20"}, nil
}

// contractName maps a contract type to the Solidity contract identifier.
func contractName(contractType string) string {
	switch contractType {
	case "rental":
		return "RentalAgreement"
	case "escrow":
		return "EscrowAgreement"
	case "sale":
		return "SaleAgreement"
	case "loan":
		return "LoanAgreement"
	case "employment":
		return "EmploymentAgreement"
	default:
		return "ConditionalAgreement"
	}
}

// =============================================================================
// Refinement
// =============================================================================

// staticMitigations are the token rewrites the static refiner applies, in
// order. Each entry fixes one audit category without touching control flow.
var staticMitigations = []struct {
	category datatypes.FindingCategory
	from     string
	to       string
	note     string
}{
	{datatypes.CategoryTxOrigin, "tx.origin", "msg.sender", "authenticate with msg.sender instead of tx.origin"},
	{datatypes.CategoryUncheckedCall, ".send(", ".transfer(", "replace unchecked send with reverting transfer"},
}

// Refine applies fixed textual mitigations for the categories it knows and
// returns the result as a full-source patch. Findings outside the known
// categories are left for a human; the explanation says which ones.
func (s *StaticCapabilities) Refine(ctx context.Context, code datatypes.GeneratedCode, report *datatypes.SecurityAuditReport) (datatypes.RefinementPatch, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.RefinementPatch{}, err
	}

	present := make(map[datatypes.FindingCategory]bool, len(report.Findings))
	for _, f := range report.Findings {
		present[f.Category] = true
	}

	source := code.Source
	var applied, skipped []string
	for _, m := range staticMitigations {
		if present[m.category] && strings.Contains(source, m.from) {
			source = strings.ReplaceAll(source, m.from, m.to)
			applied = append(applied, m.note)
			delete(present, m.category)
		}
	}
	for cat := range present {
		skipped = append(skipped, string(cat))
	}
	sort.Strings(skipped)

	explanation := "no applicable mitigation"
	if len(applied) > 0 {
		explanation = strings.Join(applied, "; ")
	}
	if len(skipped) > 0 {
		explanation += fmt.Sprintf(" (unhandled: %s)", strings.Join(skipped, ", "))
	}

	return datatypes.RefinementPatch{
		Mode:        datatypes.PatchModeFull,
		Content:     source,
		Explanation: explanation,
	}, nil
}

// =============================================================================
// Solidity Templates
// =============================================================================

// contractTemplates hold the per-type Solidity sources. They deliberately
// follow checks-effects-interactions and avoid every pattern the audit rules
// flag, so a static run audits clean end to end.
var contractTemplates = map[string]string{
	"rental": `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

/// @title {{.ContractName}}
/// @notice Rental agreement{{if .Amount}} at {{.Amount}} {{.Currency}}{{end}}{{if .Schedule}} paid {{.Schedule}}{{end}}.
contract {{.ContractName}} {
    address public immutable landlord;
    address public tenant;
    uint256 public immutable rentAmount;
    uint256 public paidThrough;
    bool public active;

    event RentPaid(address indexed tenant, uint256 amount, uint256 paidThrough);
    event LeaseTerminated(address indexed by);

    error NotTenant();
    error NotParty();
    error LeaseInactive();
    error WrongAmount();

    constructor(address tenant_, uint256 rentAmount_) {
        landlord = msg.sender;
        tenant = tenant_;
        rentAmount = rentAmount_;
        active = true;
    }

    function payRent() external payable {
        if (!active) revert LeaseInactive();
        if (msg.sender != tenant) revert NotTenant();
        if (msg.value != rentAmount) revert WrongAmount();

        paidThrough += 30 days;

        (bool ok, ) = landlord.call{value: msg.value}("");
        require(ok, "forward rent failed");
        emit RentPaid(msg.sender, msg.value, paidThrough);
    }

    function terminate() external {
        if (msg.sender != landlord && msg.sender != tenant) revert NotParty();
        if (!active) revert LeaseInactive();
        active = false;
        emit LeaseTerminated(msg.sender);
    }
}
`,

	"escrow": `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

/// @title {{.ContractName}}
/// @notice Escrow{{if .Amount}} of {{.Amount}} {{.Currency}}{{end}} released by an arbiter.
contract {{.ContractName}} {
    address public immutable depositor;
    address public immutable beneficiary;
    address public immutable arbiter;
    uint256 public deposited;
    bool public settled;

    event Deposited(address indexed from, uint256 amount);
    event Released(address indexed to, uint256 amount);
    event Refunded(address indexed to, uint256 amount);

    error NotArbiter();
    error NotDepositor();
    error AlreadySettled();
    error NothingDeposited();

    constructor(address beneficiary_, address arbiter_) {
        depositor = msg.sender;
        beneficiary = beneficiary_;
        arbiter = arbiter_;
    }

    function deposit() external payable {
        if (msg.sender != depositor) revert NotDepositor();
        if (settled) revert AlreadySettled();
        deposited += msg.value;
        emit Deposited(msg.sender, msg.value);
    }

    function release() external {
        if (msg.sender != arbiter) revert NotArbiter();
        if (settled) revert AlreadySettled();
        if (deposited == 0) revert NothingDeposited();

        uint256 amount = deposited;
        deposited = 0;
        settled = true;

        (bool ok, ) = beneficiary.call{value: amount}("");
        require(ok, "release failed");
        emit Released(beneficiary, amount);
    }

    function refund() external {
        if (msg.sender != arbiter) revert NotArbiter();
        if (settled) revert AlreadySettled();
        if (deposited == 0) revert NothingDeposited();

        uint256 amount = deposited;
        deposited = 0;
        settled = true;

        (bool ok, ) = depositor.call{value: amount}("");
        require(ok, "refund failed");
        emit Refunded(depositor, amount);
    }
}
`,

	"sale": `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

/// @title {{.ContractName}}
/// @notice Sale{{if .Amount}} at {{.Amount}} {{.Currency}}{{end}}; funds release on confirmed delivery.
contract {{.ContractName}} {
    enum State { Created, Paid, Delivered }

    address public immutable seller;
    address public buyer;
    uint256 public immutable price;
    State public state;

    event Purchased(address indexed buyer, uint256 amount);
    event DeliveryConfirmed(address indexed buyer);

    error InvalidState();
    error NotBuyer();
    error WrongAmount();

    constructor(uint256 price_) {
        seller = msg.sender;
        price = price_;
        state = State.Created;
    }

    function purchase() external payable {
        if (state != State.Created) revert InvalidState();
        if (msg.value != price) revert WrongAmount();
        buyer = msg.sender;
        state = State.Paid;
        emit Purchased(msg.sender, msg.value);
    }

    function confirmDelivery() external {
        if (state != State.Paid) revert InvalidState();
        if (msg.sender != buyer) revert NotBuyer();
        state = State.Delivered;

        (bool ok, ) = seller.call{value: price}("");
        require(ok, "payout failed");
        emit DeliveryConfirmed(msg.sender);
    }
}
`,

	"loan": `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

/// @title {{.ContractName}}
/// @notice Loan{{if .Amount}} of {{.Amount}} {{.Currency}}{{end}}{{if .Duration}} over {{.Duration}}{{end}}.
contract {{.ContractName}} {
    address public immutable lender;
    address public immutable borrower;
    uint256 public immutable principal;
    uint256 public outstanding;
    bool public funded;

    event Funded(uint256 amount);
    event Repaid(address indexed borrower, uint256 amount, uint256 outstanding);

    error NotLender();
    error NotBorrower();
    error AlreadyFunded();
    error NotFunded();
    error WrongAmount();

    constructor(address borrower_, uint256 principal_) {
        lender = msg.sender;
        borrower = borrower_;
        principal = principal_;
    }

    function fund() external payable {
        if (msg.sender != lender) revert NotLender();
        if (funded) revert AlreadyFunded();
        if (msg.value != principal) revert WrongAmount();
        funded = true;
        outstanding = principal;

        (bool ok, ) = borrower.call{value: msg.value}("");
        require(ok, "disbursement failed");
        emit Funded(msg.value);
    }

    function repay() external payable {
        if (!funded) revert NotFunded();
        if (msg.sender != borrower) revert NotBorrower();
        if (msg.value == 0 || msg.value > outstanding) revert WrongAmount();

        outstanding -= msg.value;

        (bool ok, ) = lender.call{value: msg.value}("");
        require(ok, "repayment failed");
        emit Repaid(msg.sender, msg.value, outstanding);
    }
}
`,

	"employment": `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

/// @title {{.ContractName}}
/// @notice Employment agreement{{if .Amount}} at {{.Amount}} {{.Currency}}{{end}}{{if .Schedule}} paid {{.Schedule}}{{end}}.
contract {{.ContractName}} {
    address public immutable employer;
    address public immutable employee;
    uint256 public immutable salary;
    bool public active;

    event SalaryPaid(address indexed employee, uint256 amount);
    event Terminated(address indexed by);

    error NotEmployer();
    error NotParty();
    error Inactive();
    error WrongAmount();

    constructor(address employee_, uint256 salary_) {
        employer = msg.sender;
        employee = employee_;
        salary = salary_;
        active = true;
    }

    function paySalary() external payable {
        if (msg.sender != employer) revert NotEmployer();
        if (!active) revert Inactive();
        if (msg.value != salary) revert WrongAmount();

        (bool ok, ) = employee.call{value: msg.value}("");
        require(ok, "salary transfer failed");
        emit SalaryPaid(employee, msg.value);
    }

    function terminate() external {
        if (msg.sender != employer && msg.sender != employee) revert NotParty();
        if (!active) revert Inactive();
        active = false;
        emit Terminated(msg.sender);
    }
}
`,

	"generic": `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

/// @title {{.ContractName}}
/// @notice Two-party agreement with {{len .Conditions}} tracked condition(s).
contract {{.ContractName}} {
    address public immutable partyA;
    address public partyB;
    uint256 public immutable conditionCount;
    mapping(uint256 => bool) public conditionMet;
    uint256 public metCount;
    bool public fulfilled;

    event ConditionMet(uint256 indexed index, address indexed by);
    event AgreementFulfilled();

    error NotParty();
    error UnknownCondition();
    error AlreadyMet();
    error AlreadyFulfilled();

    constructor(address partyB_, uint256 conditionCount_) {
        partyA = msg.sender;
        partyB = partyB_;
        conditionCount = conditionCount_;
    }

    function markConditionMet(uint256 index) external {
        if (msg.sender != partyA && msg.sender != partyB) revert NotParty();
        if (fulfilled) revert AlreadyFulfilled();
        if (index >= conditionCount) revert UnknownCondition();
        if (conditionMet[index]) revert AlreadyMet();

        conditionMet[index] = true;
        metCount += 1;
        emit ConditionMet(index, msg.sender);

        if (metCount == conditionCount) {
            fulfilled = true;
            emit AgreementFulfilled();
        }
    }
}
`,
}
