package session

import "github.com/clearhealth/clearhealth-ai/internal/gateway"

// sampleReportName is the filename shown for the demo document.
const sampleReportName = "Sample_Lab_Report_John_Doe.txt"

const sampleReportText = `PATIENT: JOHN DOE
DOB: 05/12/1980
DATE: OCT 24, 2024

COMPREHENSIVE METABOLIC PANEL & TRENDS
--------------------------------------
GLUCOSE           108 mg/dL    (High)   Ref: 65-99
Historical:
- 05/12/2024: 102 mg/dL
- 11/15/2023: 98 mg/dL
- 04/10/2023: 95 mg/dL

BUN               14 mg/dL     (Normal) Ref: 7-25
CREATININE        0.9 mg/dL    (Normal) Ref: 0.60-1.35
SODIUM            140 mmol/L   (Normal) Ref: 135-146
POTASSIUM         4.2 mmol/L   (Normal) Ref: 3.5-5.3

LIPID PANEL & TRENDS
--------------------
CHOLESTEROL, TOTAL  210 mg/dL  (High)   Ref: <200
Historical:
- 05/12/2024: 205 mg/dL
- 11/15/2023: 190 mg/dL
- 04/10/2023: 185 mg/dL

LDL CHOLESTEROL     138 mg/dL  (High)   Ref: <100
Historical:
- 05/12/2024: 130 mg/dL
- 11/15/2023: 110 mg/dL

ALT (SGPT)        58 IU/L      (High)   Ref: 9-46
Historical:
- 05/12/2024: 45 IU/L (Normal)

NOTES: Patient reports fatigue and mild weight gain. Advised lifestyle changes.`

// SampleReport returns the built-in demo lab report. It goes through the
// same staging and analysis path as a user upload.
func SampleReport() gateway.StagedFile {
	return gateway.NewStagedFile(sampleReportName, "text/plain", []byte(sampleReportText))
}
