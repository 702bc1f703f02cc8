package emit

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
)

type modelDescription struct {
	XMLName            xml.Name           `xml:"fmiModelDescription"`
	FMIVersion         string             `xml:"fmiVersion,attr"`
	ModelName          string             `xml:"modelName,attr"`
	InstantiationToken string             `xml:"instantiationToken,attr"`
	CoSimulation       coSimulation       `xml:"CoSimulation"`
	LogCategories      *logCategories     `xml:"LogCategories,omitempty"`
	DefaultExperiment  *defaultExperiment `xml:"DefaultExperiment,omitempty"`
	ModelVariables     modelVariables     `xml:"ModelVariables"`
	ModelStructure     modelStructure     `xml:"ModelStructure"`
}

type coSimulation struct {
	ModelIdentifier                        string `xml:"modelIdentifier,attr"`
	CanGetAndSetFMUState                   bool   `xml:"canGetAndSetFMUState,attr"`
	CanSerializeFMUState                   bool   `xml:"canSerializeFMUState,attr"`
	CanHandleVariableCommunicationStepSize bool   `xml:"canHandleVariableCommunicationStepSize,attr"`
	ProvidesIntermediateUpdate             bool   `xml:"providesIntermediateUpdate,attr"`
	CanReturnEarlyAfterIntermediateUpdate  bool   `xml:"canReturnEarlyAfterIntermediateUpdate,attr"`
	FixedInternalStepSize                  string `xml:"fixedInternalStepSize,attr,omitempty"`
	HasEventMode                           bool   `xml:"hasEventMode,attr"`
}

type logCategories struct {
	Categories []category `xml:"Category"`
}

type category struct {
	Name        string `xml:"name,attr"`
	Description string `xml:"description,attr,omitempty"`
}

type defaultExperiment struct {
	StartTime string `xml:"startTime,attr,omitempty"`
	StopTime  string `xml:"stopTime,attr,omitempty"`
	StepSize  string `xml:"stepSize,attr,omitempty"`
}

type modelVariables struct {
	// element names come from each variable's XMLName (Float64, UInt16, ...)
	Variables []variable
}

type variable struct {
	XMLName        xml.Name
	Name           string `xml:"name,attr"`
	ValueReference uint32 `xml:"valueReference,attr"`
	Causality      string `xml:"causality,attr"`
	Variability    string `xml:"variability,attr"`
	Initial        string `xml:"initial,attr,omitempty"`
	Start          string `xml:"start,attr,omitempty"`
	Description    string `xml:"description,attr,omitempty"`
}

type modelStructure struct {
	Outputs         []unknown `xml:"Output"`
	InitialUnknowns []unknown `xml:"InitialUnknown"`
}

type unknown struct {
	ValueReference uint32 `xml:"valueReference,attr"`
}

// ModelDescription renders modelDescription.xml. Everything except the
// instantiation token is a function of the layout and the FMI config.
func (e *Emitter) ModelDescription(l *model.Layout) (Artifact, error) {
	fmi := e.cfg.FMI
	doc := modelDescription{
		FMIVersion:         fmi.Version,
		ModelName:          l.Module.Name,
		InstantiationToken: e.token(),
		CoSimulation:       newCoSimulation(l.Module.Name, fmi.CoSimulation),
		LogCategories:      newLogCategories(fmi.LogCategories),
		DefaultExperiment:  newDefaultExperiment(fmi.DefaultExperiment),
	}

	doc.ModelVariables.Variables = append(doc.ModelVariables.Variables, variable{
		XMLName:        xml.Name{Local: model.TimeBinding().Tag.String()},
		Name:           model.TimeName,
		ValueReference: uint32(model.TimeRef),
		Causality:      "independent",
		Variability:    "continuous",
		Description:    "Simulation time",
	})
	for _, b := range l.Bindings {
		v := variable{
			XMLName:        xml.Name{Local: b.Tag.String()},
			Name:           b.Port.Name,
			ValueReference: uint32(b.Ref),
			Causality:      b.Port.Direction.Causality(),
			Variability:    "discrete",
			Description:    b.Port.Name,
		}
		if b.Port.Direction == model.In {
			v.Initial = "exact"
			v.Start = b.Tag.StartLiteral()
		}
		doc.ModelVariables.Variables = append(doc.ModelVariables.Variables, v)
	}

	// outputs have no internal feedback dependency, so each one is also
	// an initial unknown
	outputs := l.Outputs()
	for _, b := range outputs {
		doc.ModelStructure.Outputs = append(doc.ModelStructure.Outputs, unknown{ValueReference: uint32(b.Ref)})
	}
	for _, b := range outputs {
		doc.ModelStructure.InitialUnknowns = append(doc.ModelStructure.InitialUnknowns, unknown{ValueReference: uint32(b.Ref)})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("encoding model description: %w", err)
	}

	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<!-- " + Provenance + " -->\n")
	b.Write(body)
	b.WriteByte('\n')

	return Artifact{Path: filepath.ToSlash(e.cfg.XMLOutputFilePath), Content: b.String()}, nil
}

func newCoSimulation(identifier string, cs config.CoSimulation) coSimulation {
	out := coSimulation{
		ModelIdentifier:                        identifier,
		CanGetAndSetFMUState:                   cs.CanGetAndSetFMUState,
		CanSerializeFMUState:                   cs.CanSerializeFMUState,
		CanHandleVariableCommunicationStepSize: cs.CanHandleVariableCommunicationStepSize,
		ProvidesIntermediateUpdate:             cs.ProvidesIntermediateUpdate,
		CanReturnEarlyAfterIntermediateUpdate:  cs.CanReturnEarlyAfterIntermediateUpdate,
		HasEventMode:                           cs.HasEventMode,
	}
	if cs.FixedInternalStepSize != nil {
		out.FixedInternalStepSize = formatFloat(*cs.FixedInternalStepSize)
	}
	return out
}

func newLogCategories(cats []config.LogCategory) *logCategories {
	if len(cats) == 0 {
		return nil
	}
	out := &logCategories{}
	for _, c := range cats {
		out.Categories = append(out.Categories, category(c))
	}
	return out
}

func newDefaultExperiment(de config.DefaultExperiment) *defaultExperiment {
	if de.StartTime == nil && de.StopTime == nil && de.StepSize == nil {
		return nil
	}
	out := &defaultExperiment{}
	if de.StartTime != nil {
		out.StartTime = formatFloat(*de.StartTime)
	}
	if de.StopTime != nil {
		out.StopTime = formatFloat(*de.StopTime)
	}
	if de.StepSize != nil {
		out.StepSize = formatFloat(*de.StepSize)
	}
	return out
}

// formatFloat writes a real attribute so it always reads as one: 10 → "10.0"
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
