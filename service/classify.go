package service

import (
	"path"
	"strings"

	"github.com/AnTengye/contractchat/model"
)

type classificationRule struct {
	category model.Category
	keywords []string
}

// classificationRules are evaluated in order; the first rule with a keyword
// contained in the lower-cased file name wins.
var classificationRules = []classificationRule{
	{model.CategoryMainContract, []string{"executed", "main contract", "contract", "agreement"}},
	{model.CategoryBond, []string{"bond"}},
	{model.CategoryCertificate, []string{"certificate", "cert", "insurance"}},
	{model.CategoryProposal, []string{"proposal", "quote", "bid"}},
	{model.CategoryExhibit, []string{"exhibit", "attachment"}},
	{model.CategoryAffidavit, []string{"affidavit", "notar"}},
}

// Classify maps a file name to its document category.
func Classify(filename string) model.Category {
	name := strings.ToLower(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.category
			}
		}
	}
	return model.CategoryGeneral
}
