// Package profile loads pregeneration and tuning profiles written in CUE.
//
// A profile names the call shapes worth generating ahead of time and the
// runtime thresholds to use:
//
//	profile: {
//		container:   "app.Holder"
//		basic_forms: true
//		direct:      ["(int)int", "(any,int32)any"]
//		delegating:  ["(int64)int64"]
//		species:     ["LL", "LIJ"]
//		runtime: {
//			field_count_threshold: 12
//			expression_threshold:  24
//			compile_threshold:     30
//		}
//	}
//
// Every profile is unified with an embedded schema before it is compiled,
// so unknown fields and malformed signature keys are reported with their
// CUE source position.
package profile
