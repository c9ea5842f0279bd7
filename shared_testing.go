package fhir_etl

// Source documents served by the test server.

var OneKGSampleSheet = "Sample\tFamily ID\tPopulation\tPopulation Description\tGender\tRelationship\tDNA Source from Coriell\tMain project LC platform\n" +
	"HG00001\tHG00001\tGBR\tBritish in England and Scotland\tmale\t\tLCL\tILLUMINA\n" +
	"HG00002\tHG00002\tFIN\tFinnish in Finland\tfemale\t\t\t\n"

var OneKGVCFHeader = "##fileformat=VCFv4.1\n" +
	"##source=1000GenomesPhase3Pipeline\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tHG00002\tHG00001\tNA99999\n"

var OneKGIndexHTML = `<html><head><title>Index of /vcf_with_sample_level_annotation</title></head>
<body><h1>Index of /vcf_with_sample_level_annotation</h1>
<pre>
<a href="../">Parent Directory</a>
<a href="?C=M;O=A">Last modified</a>
<a href="ALL.chr1.phase3_shapeit2_mvncall_integrated_v5_extra_anno.20130502.genotypes.vcf.gz">ALL.chr1...vcf.gz</a>
<a href="ALL.chrX.phase3_shapeit2_mvncall_integrated_v5_extra_anno.20130502.genotypes.vcf.gz.tbi">ALL.chrX...vcf.gz.tbi</a>
<a href="README.20141104">README</a>
<a href="subdir/">subdir/</a>
<a href="https://example.org/other.vcf">elsewhere</a>
</pre></body></html>`

var OneKGFileNames = []string{
	"ALL.chr1.phase3_shapeit2_mvncall_integrated_v5_extra_anno.20130502.genotypes.vcf.gz",
	"ALL.chrX.phase3_shapeit2_mvncall_integrated_v5_extra_anno.20130502.genotypes.vcf.gz.tbi",
}

var GTExSubjectPages = []string{
	`{"data": [
  {"subjectId": "GTEX-1117F", "sex": "female", "ageBracket": "60-69", "hardyScale": "Slow death", "datasetId": "gtex_v10"},
  {"subjectId": "GTEX-111CU", "sex": "male", "ageBracket": "50-59", "hardyScale": null, "datasetId": "gtex_v10"}
 ],
 "paging_info": {"numberOfPages": 2, "page": 0, "maxItemsPerPage": 2, "totalNumberOfItems": 3}}`,
	`{"data": [
  {"subjectId": "GTEX-111FC", "sex": "male", "ageBracket": "20-29", "hardyScale": "", "datasetId": "gtex_v10"}
 ],
 "paging_info": {"numberOfPages": 2, "page": 1, "maxItemsPerPage": 2, "totalNumberOfItems": 3}}`,
}

var GTExSamplePage = `{"data": [
  {"sampleId": "GTEX-1117F-0003-SM-58Q7G", "aliquotId": "SM-58Q7G", "subjectId": "GTEX-1117F", "dataType": "WGS", "freezeType": "PAXgene", "tissueSiteDetail": "Whole Blood"},
  {"sampleId": "GTEX-111CU-0126-SM-5GZWZ", "aliquotId": "SM-5GZWZ", "subjectId": "GTEX-111CU", "dataType": "RNASEQ", "freezeType": null},
  {"sampleId": "GTEX-111FC-0226-SM-5N9CV", "aliquotId": "SM-5N9CV", "subjectId": null, "dataType": null, "freezeType": "OCT"}
 ],
 "paging_info": {"numberOfPages": 1, "page": 0, "maxItemsPerPage": 100, "totalNumberOfItems": 3}}`

var GTExSampleAttributes = "SAMPID\tSMATSSCR\tSMCENTER\tSMTS\n" +
	"GTEX-1117F-0003-SM-58Q7G\t\tB1\tBlood\n" +
	"GTEX-1117F-0226-SM-5GZZ7\t0\tB1\tAdipose Tissue\n" +
	"GTEX-111FC-0226-SM-5N9CV\t1\tB1\tMuscle\n" +
	"GTEX-111FC-0226-SM-5N9CV\t1\tB1\tMuscle\n"

var GTExFileList = `[
 {"name": "GTEx Analysis V10", "filesets": []},
 {"name": "GTEx Analysis V8", "filesets": [
   {"name": "Protected Data", "subpath": "protected_data", "files": [
     {"name": "phg000830.v1.GTEx_WGS.genotype-calls-vcf.c1.GRU.tar", "type": "VCF", "size": "", "release": "v8"}
   ]},
   {"name": "eQTL", "subpath": "bulk-qtl", "files": [
     {"name": "GTEx_Analysis_v8_eQTL.tar", "type": "TAR", "size": "1.4 GiB", "release": "v8"},
     {"name": "GTEx_Analysis_v8_eQTL_expression_matrices.tar", "type": "TAR", "size": "1.1 GiB", "release": "v8"}
   ]},
   {"name": "Annotations", "subpath": "annotations", "files": [
     {"name": "GTEx_Analysis_v8_Annotations_SampleAttributesDS.txt", "type": null, "size": "11.2 MiB", "release": "v8"}
   ]}
 ]}
]`
