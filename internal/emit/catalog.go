package emit

import (
	"slices"
	"strings"

	"github.com/robert-at-pretension-io/scfmu/internal/scalar"
)

// role selects how a catalog entry's body is filled
type role int

const (
	roleStub role = iota
	roleGetter
	roleSetter
	roleStep
	roleInstantiate
	roleFree
	roleMain
)

// FunctionTemplate is one entry of the function catalog. Entries are
// fixed at init and never modified.
type FunctionTemplate struct {
	Name   string
	Return string
	// Params are full C declarations, e.g. "const fmi3ValueReference valueReferences[]"
	Params []string
	// File is the source file name under the source directory
	File string

	role role
	// tag of a numeric accessor; Invalid for String, Binary and Clock
	tag scalar.Tag
	// statements a stub runs before returning
	results []string
	// returns is the expression a stub returns, "" for void
	returns string
}

// Signature renders the declaration line(s) without a trailing brace
func (f FunctionTemplate) Signature() string {
	if len(f.Params) == 0 {
		return f.Return + " " + f.Name + "(void)"
	}
	return f.Return + " " + f.Name + "(\n    " + strings.Join(f.Params, ",\n    ") + ")"
}

// ParamNames returns the identifier of each parameter
func (f FunctionTemplate) ParamNames() []string {
	names := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		names = append(names, paramName(p))
	}
	return names
}

func paramName(decl string) string {
	decl = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(decl), "[]"))
	i := len(decl)
	for i > 0 && isIdentByte(decl[i-1]) {
		i--
	}
	return decl[i:]
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// Catalog returns every function the generated unit implements, main last
func Catalog() []FunctionTemplate {
	return slices.Clone(catalog)
}

const (
	cStatus   = "fmi3Status"
	pInstance = "fmi3Instance instance"
	pVRs      = "const fmi3ValueReference valueReferences[]"
	pNVRs     = "size_t nValueReferences"
	pNValues  = "size_t nValues"
	cOK       = "fmi3OK"
)

var catalog = buildCatalog()

func buildCatalog() []FunctionTemplate {
	var fns []FunctionTemplate
	add := func(f FunctionTemplate) {
		if f.File == "" {
			f.File = f.Name + ".cpp"
		}
		fns = append(fns, f)
	}
	stub := func(name string, params []string, results ...string) {
		add(FunctionTemplate{Name: name, Return: cStatus, Params: params, role: roleStub, results: results, returns: cOK})
	}

	// inquire version and logging
	add(FunctionTemplate{Name: "fmi3GetVersion", Return: "const char*", role: roleStub, returns: "fmi3Version"})
	stub("fmi3SetDebugLogging", []string{pInstance, "fmi3Boolean loggingOn", "size_t nCategories", "const fmi3String categories[]"})

	// creation and destruction
	add(FunctionTemplate{
		Name:   "fmi3InstantiateModelExchange",
		Return: "fmi3Instance",
		Params: []string{
			"fmi3String instanceName", "fmi3String instantiationToken", "fmi3String resourcePath",
			"fmi3Boolean visible", "fmi3Boolean loggingOn", "fmi3InstanceEnvironment instanceEnvironment",
			"fmi3LogMessageCallback logMessage",
		},
		role:    roleStub,
		returns: "NULL",
	})
	add(FunctionTemplate{
		Name:   "fmi3InstantiateCoSimulation",
		Return: "fmi3Instance",
		Params: []string{
			"fmi3String instanceName", "fmi3String instantiationToken", "fmi3String resourcePath",
			"fmi3Boolean visible", "fmi3Boolean loggingOn", "fmi3Boolean eventModeUsed",
			"fmi3Boolean earlyReturnAllowed", "const fmi3ValueReference requiredIntermediateVariables[]",
			"size_t nRequiredIntermediateVariables", "fmi3InstanceEnvironment instanceEnvironment",
			"fmi3LogMessageCallback logMessage", "fmi3IntermediateUpdateCallback intermediateUpdate",
		},
		role: roleInstantiate,
	})
	add(FunctionTemplate{
		Name:   "fmi3InstantiateScheduledExecution",
		Return: "fmi3Instance",
		Params: []string{
			"fmi3String instanceName", "fmi3String instantiationToken", "fmi3String resourcePath",
			"fmi3Boolean visible", "fmi3Boolean loggingOn", "fmi3InstanceEnvironment instanceEnvironment",
			"fmi3LogMessageCallback logMessage", "fmi3ClockUpdateCallback clockUpdate",
			"fmi3LockPreemptionCallback lockPreemption", "fmi3UnlockPreemptionCallback unlockPreemption",
		},
		role:    roleStub,
		returns: "NULL",
	})
	add(FunctionTemplate{Name: "fmi3FreeInstance", Return: "void", Params: []string{pInstance}, role: roleFree})

	// mode transitions
	stub("fmi3EnterInitializationMode", []string{pInstance, "fmi3Boolean toleranceDefined", "fmi3Float64 tolerance",
		"fmi3Float64 startTime", "fmi3Boolean stopTimeDefined", "fmi3Float64 stopTime"})
	stub("fmi3ExitInitializationMode", []string{pInstance})
	stub("fmi3EnterEventMode", []string{pInstance})
	stub("fmi3Terminate", []string{pInstance})
	stub("fmi3Reset", []string{pInstance})

	// typed accessors
	for _, tag := range scalar.All {
		ctype := tag.CType()
		add(FunctionTemplate{Name: "fmi3Get" + tag.String(), Return: cStatus,
			Params: []string{pInstance, pVRs, pNVRs, ctype + " values[]", pNValues}, role: roleGetter, tag: tag})
		add(FunctionTemplate{Name: "fmi3Set" + tag.String(), Return: cStatus,
			Params: []string{pInstance, pVRs, pNVRs, "const " + ctype + " values[]", pNValues}, role: roleSetter, tag: tag})
	}
	add(FunctionTemplate{Name: "fmi3GetString", Return: cStatus,
		Params: []string{pInstance, pVRs, pNVRs, "fmi3String values[]", pNValues}, role: roleGetter})
	add(FunctionTemplate{Name: "fmi3SetString", Return: cStatus,
		Params: []string{pInstance, pVRs, pNVRs, "const fmi3String values[]", pNValues}, role: roleSetter})
	add(FunctionTemplate{Name: "fmi3GetBinary", Return: cStatus,
		Params: []string{pInstance, pVRs, pNVRs, "size_t valueSizes[]", "fmi3Binary values[]", pNValues}, role: roleGetter})
	add(FunctionTemplate{Name: "fmi3SetBinary", Return: cStatus,
		Params: []string{pInstance, pVRs, pNVRs, "const size_t valueSizes[]", "const fmi3Binary values[]", pNValues}, role: roleSetter})
	add(FunctionTemplate{Name: "fmi3GetClock", Return: cStatus,
		Params: []string{pInstance, pVRs, pNVRs, "fmi3Clock values[]"}, role: roleGetter})
	add(FunctionTemplate{Name: "fmi3SetClock", Return: cStatus,
		Params: []string{pInstance, pVRs, pNVRs, "const fmi3Clock values[]"}, role: roleSetter})

	// variable dependencies
	stub("fmi3GetNumberOfVariableDependencies", []string{pInstance, "fmi3ValueReference valueReference", "size_t* nDependencies"},
		"*nDependencies = 0;")
	stub("fmi3GetVariableDependencies", []string{pInstance, "fmi3ValueReference dependent",
		"size_t elementIndicesOfDependent[]", "fmi3ValueReference independents[]",
		"size_t elementIndicesOfIndependents[]", "fmi3DependencyKind dependencyKinds[]", "size_t nDependencies"})

	// FMU state
	stub("fmi3GetFMUState", []string{pInstance, "fmi3FMUState* FMUState"})
	stub("fmi3SetFMUState", []string{pInstance, "fmi3FMUState FMUState"})
	stub("fmi3FreeFMUState", []string{pInstance, "fmi3FMUState* FMUState"})
	stub("fmi3SerializedFMUStateSize", []string{pInstance, "fmi3FMUState FMUState", "size_t* size"},
		"*size = 0;")
	stub("fmi3SerializeFMUState", []string{pInstance, "fmi3FMUState FMUState", "fmi3Byte serializedState[]", "size_t size"})
	stub("fmi3DeserializeFMUState", []string{pInstance, "const fmi3Byte serializedState[]", "size_t size", "fmi3FMUState* FMUState"})

	// partial derivatives
	derivative := []string{pInstance, "const fmi3ValueReference unknowns[]", "size_t nUnknowns",
		"const fmi3ValueReference knowns[]", "size_t nKnowns", "const fmi3Float64 seed[]", "size_t nSeed",
		"fmi3Float64 sensitivity[]", "size_t nSensitivity"}
	stub("fmi3GetDirectionalDerivative", derivative)
	stub("fmi3GetAdjointDerivative", derivative)

	// configuration mode
	stub("fmi3EnterConfigurationMode", []string{pInstance})
	stub("fmi3ExitConfigurationMode", []string{pInstance})

	// clocks
	stub("fmi3GetIntervalDecimal", []string{pInstance, pVRs, pNVRs, "fmi3Float64 intervals[]", "fmi3IntervalQualifier qualifiers[]"})
	stub("fmi3GetIntervalFraction", []string{pInstance, pVRs, pNVRs, "fmi3UInt64 counters[]", "fmi3UInt64 resolutions[]",
		"fmi3IntervalQualifier qualifiers[]"})
	stub("fmi3GetShiftDecimal", []string{pInstance, pVRs, pNVRs, "fmi3Float64 shifts[]"})
	stub("fmi3GetShiftFraction", []string{pInstance, pVRs, pNVRs, "fmi3UInt64 counters[]", "fmi3UInt64 resolutions[]"})
	stub("fmi3SetIntervalDecimal", []string{pInstance, pVRs, pNVRs, "const fmi3Float64 intervals[]"})
	stub("fmi3SetIntervalFraction", []string{pInstance, pVRs, pNVRs, "const fmi3UInt64 counters[]", "const fmi3UInt64 resolutions[]"})
	stub("fmi3SetShiftDecimal", []string{pInstance, pVRs, pNVRs, "const fmi3Float64 shifts[]"})
	stub("fmi3SetShiftFraction", []string{pInstance, pVRs, pNVRs, "const fmi3UInt64 counters[]", "const fmi3UInt64 resolutions[]"})
	stub("fmi3EvaluateDiscreteStates", []string{pInstance})
	stub("fmi3UpdateDiscreteStates", []string{pInstance, "fmi3Boolean* discreteStatesNeedUpdate",
		"fmi3Boolean* terminateSimulation", "fmi3Boolean* nominalsOfContinuousStatesChanged",
		"fmi3Boolean* valuesOfContinuousStatesChanged", "fmi3Boolean* nextEventTimeDefined", "fmi3Float64* nextEventTime"},
		"*discreteStatesNeedUpdate = fmi3False;", "*terminateSimulation = fmi3False;",
		"*nominalsOfContinuousStatesChanged = fmi3False;", "*valuesOfContinuousStatesChanged = fmi3False;",
		"*nextEventTimeDefined = fmi3False;", "*nextEventTime = 0.0;")

	// model exchange
	stub("fmi3EnterContinuousTimeMode", []string{pInstance})
	stub("fmi3CompletedIntegratorStep", []string{pInstance, "fmi3Boolean noSetFMUStatePriorToCurrentPoint",
		"fmi3Boolean* enterEventMode", "fmi3Boolean* terminateSimulation"},
		"*enterEventMode = fmi3False;", "*terminateSimulation = fmi3False;")
	stub("fmi3SetTime", []string{pInstance, "fmi3Float64 time"})
	stub("fmi3SetContinuousStates", []string{pInstance, "const fmi3Float64 continuousStates[]", "size_t nContinuousStates"})
	stub("fmi3GetContinuousStateDerivatives", []string{pInstance, "fmi3Float64 derivatives[]", "size_t nContinuousStates"})
	stub("fmi3GetEventIndicators", []string{pInstance, "fmi3Float64 eventIndicators[]", "size_t nEventIndicators"})
	stub("fmi3GetContinuousStates", []string{pInstance, "fmi3Float64 continuousStates[]", "size_t nContinuousStates"})
	stub("fmi3GetNominalsOfContinuousStates", []string{pInstance, "fmi3Float64 nominals[]", "size_t nContinuousStates"})
	stub("fmi3GetNumberOfEventIndicators", []string{pInstance, "size_t* nEventIndicators"},
		"*nEventIndicators = 0;")
	stub("fmi3GetNumberOfContinuousStates", []string{pInstance, "size_t* nContinuousStates"},
		"*nContinuousStates = 0;")

	// co-simulation
	stub("fmi3EnterStepMode", []string{pInstance})
	stub("fmi3GetOutputDerivatives", []string{pInstance, pVRs, pNVRs, "const fmi3Int32 orders[]",
		"fmi3Float64 values[]", pNValues})
	add(FunctionTemplate{
		Name:   "fmi3DoStep",
		Return: cStatus,
		Params: []string{
			pInstance, "fmi3Float64 currentCommunicationPoint", "fmi3Float64 communicationStepSize",
			"fmi3Boolean noSetFMUStatePriorToCurrentPoint", "fmi3Boolean* eventHandlingNeeded",
			"fmi3Boolean* terminateSimulation", "fmi3Boolean* earlyReturn", "fmi3Float64* lastSuccessfulTime",
		},
		role: roleStep,
	})

	// scheduled execution
	stub("fmi3ActivateModelPartition", []string{pInstance, "fmi3ValueReference clockReference", "fmi3Float64 activationTime"})

	add(FunctionTemplate{
		Name:    "sc_main",
		Return:  "int",
		Params:  []string{"int argc", "char *argv[]"},
		File:    "main.cpp",
		role:    roleMain,
		returns: "0",
	})

	return fns
}
