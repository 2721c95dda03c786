package types

// Status enumerations are stored as integers with fixed orderings. The
// reducers rely on these orderings (min/max folds), so values must never be
// reassigned.

// RequestStatus is the lifecycle of a verification request.
type RequestStatus int

const (
	RequestStored          RequestStatus = 0
	RequestScheduled       RequestStatus = 1
	RequestProcessing      RequestStatus = 2
	RequestProcessed       RequestStatus = 3
	RequestError           RequestStatus = 4
	RequestTimeout         RequestStatus = 5
	RequestMissingProvider RequestStatus = 6
)

// ResultStatus is shared by per-provider and per-instrument results.
type ResultStatus int

const (
	ResultPending                ResultStatus = 0
	ResultProcessed              ResultStatus = 1
	ResultError                  ResultStatus = 2
	ResultTimeout                ResultStatus = 3
	ResultMissingProvider        ResultStatus = 4
	ResultMissingEnrolment       ResultStatus = 5
	ResultProcessing             ResultStatus = 6
	ResultWaitingExternalService ResultStatus = 7
)

// ResultCode is the normalized verdict attached to a result.
type ResultCode int

const (
	CodePending ResultCode = 0
	CodeOk      ResultCode = 1
	CodeWarning ResultCode = 2
	CodeAlert   ResultCode = 3
)

// SampleStatus is the lifecycle of an enrolment sample.
type SampleStatus int

const (
	SampleStored           SampleStatus = 0
	SampleValid            SampleStatus = 1
	SampleError            SampleStatus = 2
	SampleTimeout          SampleStatus = 3
	SampleMissingValidator SampleStatus = 4
)

// ValidationStatus is the lifecycle of one provider's validation of a sample.
type ValidationStatus int

const (
	ValidationValidating             ValidationStatus = 0
	ValidationValid                  ValidationStatus = 1
	ValidationError                  ValidationStatus = 2
	ValidationTimeout                ValidationStatus = 3
	ValidationWaitingExternalService ValidationStatus = 4
)

// ReportLevel is the alert scale used on trust reports. Note the offset with
// respect to ResultCode: a nonzero code maps to code+1 on this scale.
type ReportLevel int

const (
	LevelPending       ReportLevel = 0
	LevelNoInformation ReportLevel = 1
	LevelOk            ReportLevel = 2
	LevelWarning       ReportLevel = 3
	LevelAlert         ReportLevel = 4
)

// Informed consent status labels. Any status with the VALID prefix allows
// the learner to submit data.
const (
	ICValid           = "VALID"
	ICValidNeedUpdate = "VALID_NEED_UPDATE"
	ICValidExternal   = "VALID_EXTERNAL"
	ICNotValid        = "NOT_VALID"
	ICNotValidYet     = "NOT_VALID_YET"
	ICNotValidMissing = "NOT_VALID_MISSING"
	ICRejected        = "NOT_VALID_REJECTED"
)
