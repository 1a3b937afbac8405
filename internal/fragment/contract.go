package fragment

import (
	"slices"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
)

// ValidateMappingReturn checks that every return directly in scope returns
// a dict display whose keys are string constants, and that all of them
// share one key set. A scope without returns fails too.
func ValidateMappingReturn(body []ast.Stmt, scope string) error {
	returns, err := FindReturns(body).Get(scope)
	if err != nil {
		return err
	}
	if len(returns) == 0 {
		return codemodel.NewReturnContractError(scope, "no returns found in function")
	}
	var keys []string
	for i, r := range returns {
		local, err := returnKeys(scope, r)
		if err != nil {
			return err
		}
		slices.Sort(local)
		if i == 0 {
			keys = local
			continue
		}
		if !slices.Equal(keys, local) {
			return codemodel.NewReturnContractError(scope, "return dicts have different keys")
		}
	}
	return nil
}

// IsMappingReturning is the non-failing form of ValidateMappingReturn.
func IsMappingReturning(body []ast.Stmt, scope string) bool {
	return ValidateMappingReturn(body, scope) == nil
}

// MappingKeys returns the key set returned at scope, in the order of the
// first return. The body must satisfy ValidateMappingReturn.
func MappingKeys(body []ast.Stmt, scope string) ([]string, error) {
	if err := ValidateMappingReturn(body, scope); err != nil {
		return nil, err
	}
	returns, _ := FindReturns(body).Get(scope)
	return returnKeys(scope, returns[0])
}

func returnKeys(scope string, r *ast.Return) ([]string, error) {
	d, ok := r.Value.(*ast.Dict)
	if !ok {
		return nil, codemodel.NewReturnContractError(scope, "non-dict return value found in function")
	}
	keys := make([]string, 0, len(d.Entries))
	for _, entry := range d.Entries {
		key, ok := stringConstant(entry.Key)
		if !ok {
			return nil, codemodel.NewReturnContractError(scope, "return dictionary key not a string")
		}
		keys = append(keys, key)
	}
	return keys, nil
}
