package external

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
)

// errorAllele marks a variant the projection service could not place.
const errorAllele = "<ERROR>"

// VCFRequest is the input of one projection: the parsed variant strings of a
// case and the zygosity they share.
type VCFRequest struct {
	CaseID   string   `json:"case_id"`
	Zygosity string   `json:"zygosity"`
	Variants []string `json:"variants"`
}

// VCFRow is one variant-call line.
type VCFRow struct {
	Chrom    string `json:"chrom"`
	Pos      int    `json:"pos"`
	ID       string `json:"id"`
	Ref      string `json:"ref"`
	Alt      string `json:"alt"`
	HGVS     string `json:"hgvs"`
	Genotype string `json:"genotype"`
}

// VCFResult holds either rows or a failure message, never both.
type VCFResult struct {
	Rows    []VCFRow `json:"rows,omitempty"`
	Failure string   `json:"failure,omitempty"`
}

// OK reports whether the projection succeeded.
func (r *VCFResult) OK() bool { return r.Failure == "" }

type vcfResponse struct {
	Rows  []VCFRow `json:"rows"`
	Error string   `json:"error"`
}

// VCFClient converts HGVS strings into variant-call rows through an
// out-of-process normalization service.
type VCFClient struct {
	baseURL string
	caller  *caller
	log     *logrus.Logger
}

// NewVCFClient creates a client.
func NewVCFClient(config domain.ServiceConfig, logger *logrus.Logger) *VCFClient {
	return &VCFClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		caller:  newCaller("vcf", config, logger),
		log:     logger,
	}
}

// Project requests the rows for req. A service-side failure is returned in
// the result; the error is reserved for transport problems.
func (c *VCFClient) Project(ctx context.Context, req VCFRequest) (*VCFResult, error) {
	if len(req.Variants) == 0 {
		return &VCFResult{Failure: "no variants to project"}, nil
	}

	var resp vcfResponse
	err := c.caller.call(ctx, req.CaseID, func(ctx context.Context) error {
		resp = vcfResponse{}
		return c.caller.doJSON(ctx, http.MethodPost, c.baseURL+"/hgvs-to-vcf", nil, req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("projecting case %s: %w", req.CaseID, err)
	}

	result := projectRows(resp, req.Zygosity)
	if !result.OK() {
		c.log.WithFields(logrus.Fields{
			"case_id": req.CaseID,
			"failure": result.Failure,
		}).Warn("VCF projection failed")
	}
	return result, nil
}

// projectRows applies the genotype, sorts rows by (chrom, pos) and drops
// duplicates.
func projectRows(resp vcfResponse, zygosity string) *VCFResult {
	if resp.Error != "" {
		return &VCFResult{Failure: resp.Error}
	}
	genotype := domain.Genotype(zygosity)

	rows := make([]VCFRow, 0, len(resp.Rows))
	seen := make(map[VCFRow]bool, len(resp.Rows))
	for _, row := range resp.Rows {
		if row.Alt == errorAllele {
			return &VCFResult{Failure: fmt.Sprintf("no alternate allele for %s", row.HGVS)}
		}
		if row.Alt == "" {
			row.Alt = "NA"
		}
		if row.ID == "" {
			row.ID = "."
		}
		row.Genotype = genotype
		if seen[row] {
			continue
		}
		seen[row] = true
		rows = append(rows, row)
	}
	sortRows(rows)
	return &VCFResult{Rows: rows}
}

// MergeRows combines the rows of several projections of one case, dropping
// duplicates and keeping (chrom, pos) order.
func MergeRows(sets ...[]VCFRow) []VCFRow {
	var rows []VCFRow
	seen := make(map[VCFRow]bool)
	for _, set := range sets {
		for _, row := range set {
			if seen[row] {
				continue
			}
			seen[row] = true
			rows = append(rows, row)
		}
	}
	sortRows(rows)
	return rows
}

// sortRows orders by chromosome name as text, then position.
func sortRows(rows []VCFRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Chrom != rows[j].Chrom {
			return rows[i].Chrom < rows[j].Chrom
		}
		return rows[i].Pos < rows[j].Pos
	})
}

// GRCh37 contig lengths written into every VCF header.
var contigs = []struct {
	id     string
	length int
}{
	{"1", 249250621}, {"2", 243199373}, {"3", 198022430}, {"4", 191154276},
	{"5", 180915260}, {"6", 171115067}, {"7", 159138663}, {"8", 146364022},
	{"9", 141213431}, {"10", 135534747}, {"11", 135006516}, {"12", 133851895},
	{"13", 115169878}, {"14", 107349540}, {"15", 102531392}, {"16", 90354753},
	{"17", 81195210}, {"18", 78077248}, {"19", 59128983}, {"20", 63025520},
	{"21", 48129895}, {"22", 51304566}, {"X", 155270560}, {"Y", 59373566},
}

// WriteVCF writes rows as a single-sample VCF for caseID.
func WriteVCF(w io.Writer, caseID string, rows []VCFRow) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "##fileformat=VCFv4.1")
	fmt.Fprintln(bw, `##INFO=<ID=HGVS,Number=1,Type=String,Description="HGVS-Code">`)
	fmt.Fprintln(bw, `##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`)
	for _, c := range contigs {
		fmt.Fprintf(bw, "##contig=<ID=%s,assembly=b37,length=%d>\n", c.id, c.length)
	}
	fmt.Fprintf(bw, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t%s\n", caseID)
	for _, r := range rows {
		fmt.Fprintf(bw, "%s\t%d\t%s\t%s\t%s\t.\t.\tHGVS=%q\tGT\t%s\n", r.Chrom, r.Pos, r.ID, r.Ref, r.Alt, r.HGVS, r.Genotype)
	}
	return bw.Flush()
}
