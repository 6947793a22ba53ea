package mzid

import (
	"encoding/xml"
)

// Types for parsing mzIdentML. Only the parts needed to build PSMs are kept.

type mzIdentMLContent struct {
	XMLName                      xml.Name                       `xml:"MzIdentML"`
	DBSequence                   []dbSequence                   `xml:"SequenceCollection>DBSequence"`
	Peptide                      []peptide                      `xml:"SequenceCollection>Peptide"`
	PeptideEvidence              []peptideEvidence              `xml:"SequenceCollection>PeptideEvidence"`
	SpectrumIdentificationResult []spectrumIdentificationResult `xml:"DataCollection>AnalysisData>SpectrumIdentificationList>SpectrumIdentificationResult"`
}

type dbSequence struct {
	ID        string `xml:"id,attr"`
	Accession string `xml:"accession,attr"`
}

type peptide struct {
	ID              string `xml:"id,attr"`
	PeptideSequence string
	Modification    []modification
}

type modification struct {
	// location 0 is the N-terminus and length+1 the C-terminus
	Location              int     `xml:"location,attr"`
	MonoisotopicMassDelta float64 `xml:"monoisotopicMassDelta,attr"`
}

type peptideEvidence struct {
	ID            string `xml:"id,attr"`
	DBSequenceRef string `xml:"dBSequence_ref,attr"`
	PeptideRef    string `xml:"peptide_ref,attr"`
	IsDecoy       bool   `xml:"isDecoy,attr"`
}

type spectrumIdentificationResult struct {
	SpectrumID                 string `xml:"spectrumID,attr"`
	SpectrumIdentificationItem []spectrumIdentificationItem
}

type spectrumIdentificationItem struct {
	ID                     string               `xml:"id,attr"`
	CalculatedMassToCharge string               `xml:"calculatedMassToCharge,attr"`
	PeptideRef             string               `xml:"peptide_ref,attr"`
	PeptideEvidenceRef     []peptideEvidenceRef `xml:"PeptideEvidenceRef"`
	CvPar                  []param              `xml:"cvParam"`
	UserPar                []param              `xml:"userParam"`
}

type peptideEvidenceRef struct {
	PeptideEvidenceRef string `xml:"peptideEvidence_ref,attr"`
}

type param struct {
	Accession string `xml:"accession,attr"`
	Name      string `xml:"name,attr"`
	Value     string `xml:"value,attr"`
}
