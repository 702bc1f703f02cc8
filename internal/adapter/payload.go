package adapter

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/extractor"
	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
)

// exchangeMethod is the blocking call a transaction-level top must offer
const exchangeMethod = "send_data"

// PayloadField drives a transaction-level top with one send_data call
// per step. The record holds one field per payload member.
type PayloadField struct {
	cfg *config.Config
	ex  *extractor.Extractor
}

// Kind implements Adapter
func (a *PayloadField) Kind() model.AdapterKind {
	return model.PayloadField
}

// Describe parses the payload struct and checks that the top header
// declares the exchange method
func (a *PayloadField) Describe(ctx context.Context) (model.Module, error) {
	tlm := a.cfg.TLM

	payloadPath, payload, err := readSource(a.cfg, "tlm.tlm_top_level_module_payload_file_path", tlm.PayloadFile)
	if err != nil {
		return model.Module{}, err
	}

	mod, err := a.ex.ParsePayload(ctx, extractor.PayloadRequest{
		File:        payloadPath,
		StructName:  tlm.PayloadStruct,
		ModuleName:  tlm.ModuleName,
		Header:      includeName(tlm.HeaderFile),
		Unannotated: extractor.Unannotated(tlm.UnannotatedFields),
	}, payload)
	if err != nil {
		return model.Module{}, err
	}

	headerPath, header, err := readSource(a.cfg, "tlm.tlm_top_level_module_header_file_path", tlm.HeaderFile)
	if err != nil {
		return model.Module{}, err
	}
	found, methods, err := a.ex.ClassMethods(ctx, header, tlm.ModuleName)
	if err != nil {
		return model.Module{}, generr.New(generr.KindParse).File(headerPath).Construct(tlm.ModuleName).
			Detail("parsing top-level header").Cause(err).Build()
	}
	switch {
	case !found:
		// macro-generated classes are invisible to the grammar
		Logger().Warn("top-level class not found in header, assuming it provides send_data",
			zap.String("class", tlm.ModuleName), zap.String("header", headerPath))
	case !slices.Contains(methods, exchangeMethod):
		return model.Module{}, generr.Parse(headerPath, 0, tlm.ModuleName,
			fmt.Sprintf("class does not declare %s(const %s &)", exchangeMethod, tlm.PayloadStruct))
	}

	Logger().Debug("described payload fields",
		zap.String("struct", tlm.PayloadStruct), zap.Int("ports", len(mod.Ports)),
		zap.Int("bookkeeping", len(mod.Bookkeeping)))
	return mod, nil
}

// Signals returns nothing: the payload is exchanged by value
func (a *PayloadField) Signals(*model.Layout) []string {
	return nil
}

// Instantiate needs no binding beyond the allocation
func (a *PayloadField) Instantiate(*model.Layout) []string {
	return nil
}

// Mirror returns "": fields reach the module at the next step
func (a *PayloadField) Mirror(*model.Layout, model.Binding) string {
	return ""
}

// Step copies the inputs into a fresh payload, performs one exchange and
// copies the outputs of the result back into the record
func (a *PayloadField) Step(l *model.Layout) []string {
	payload := l.Module.PayloadType

	lines := []string{fmt.Sprintf("%s payload;", payload)}
	for _, b := range l.Inputs() {
		lines = append(lines, fmt.Sprintf("payload.%s = fmu->%s;", b.Port.Name, b.Port.Name))
	}
	lines = append(lines, fmt.Sprintf("%s result = fmu->%s->%s(payload);", payload, l.InstanceField, exchangeMethod))
	for _, b := range l.Outputs() {
		lines = append(lines, fmt.Sprintf("fmu->%s = result.%s;", b.Port.Name, b.Port.Name))
	}
	return lines
}
