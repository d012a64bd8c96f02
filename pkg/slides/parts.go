package slides

const nsDecl = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const emptyTree = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
	`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`

var contentTypesTmpl = mustParse("content-types", xmlHeader+
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`+
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`+
	`<Default Extension="xml" ContentType="application/xml"/>`+
	`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`+
	`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`+
	`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`+
	`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`+
	`{{range $i, $s := .Slides}}<Override PartName="/ppt/slides/slide{{add $i 1}}.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>{{end}}`+
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>`+
	`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`+
	`</Types>`)

var rootRelsTmpl = mustParse("root-rels", xmlHeader+
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>`+
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>`+
	`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>`+
	`</Relationships>`)

var appTmpl = mustParse("app", xmlHeader+
	`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">`+
	`<Application>ekaya-sales</Application><Slides>{{len .Slides}}</Slides><PresentationFormat>On-screen Show (16:9)</PresentationFormat>`+
	`</Properties>`)

var coreTmpl = mustParse("core", xmlHeader+
	`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" `+
	`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" `+
	`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`+
	`<dc:title>{{x .Deck.Title}}</dc:title><dc:creator>{{x .Deck.Author}}</dc:creator>`+
	`<dcterms:created xsi:type="dcterms:W3CDTF">{{.Created}}</dcterms:created>`+
	`<dcterms:modified xsi:type="dcterms:W3CDTF">{{.Created}}</dcterms:modified>`+
	`</cp:coreProperties>`)

var presentationTmpl = mustParse("presentation", xmlHeader+
	`<p:presentation `+nsDecl+` saveSubsetFonts="1">`+
	`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`+
	`<p:sldIdLst>{{range $i, $s := .Slides}}<p:sldId id="{{add $i 256}}" r:id="rId{{add $i 3}}"/>{{end}}</p:sldIdLst>`+
	`<p:sldSz cx="12192000" cy="6858000"/><p:notesSz cx="6858000" cy="9144000"/>`+
	`</p:presentation>`)

var presentationRelsTmpl = mustParse("presentation-rels", xmlHeader+
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>`+
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="theme/theme1.xml"/>`+
	`{{range $i, $s := .Slides}}<Relationship Id="rId{{add $i 3}}" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide{{add $i 1}}.xml"/>{{end}}`+
	`</Relationships>`)

var slideMasterTmpl = mustParse("slide-master", xmlHeader+
	`<p:sldMaster `+nsDecl+`>`+
	`<p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg><p:spTree>`+emptyTree+`</p:spTree></p:cSld>`+
	`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" `+
	`accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>`+
	`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>`+
	`<p:txStyles><p:titleStyle/><p:bodyStyle/><p:otherStyle/></p:txStyles>`+
	`</p:sldMaster>`)

var slideMasterRelsTmpl = mustParse("slide-master-rels", xmlHeader+
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`+
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="../theme/theme1.xml"/>`+
	`</Relationships>`)

var slideLayoutTmpl = mustParse("slide-layout", xmlHeader+
	`<p:sldLayout `+nsDecl+` type="blank" preserve="1">`+
	`<p:cSld name="Blank"><p:spTree>`+emptyTree+`</p:spTree></p:cSld>`+
	`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>`+
	`</p:sldLayout>`)

var slideLayoutRelsTmpl = mustParse("slide-layout-rels", xmlHeader+
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="../slideMasters/slideMaster1.xml"/>`+
	`</Relationships>`)

var slideRelsTmpl = mustParse("slide-rels", xmlHeader+
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`+
	`</Relationships>`)

const paragraphXML = `{{define "paragraph"}}<a:p>` +
	`{{if .Bullet}}<a:pPr marL="{{indent .Level}}" indent="-228600"><a:buFont typeface="Arial"/><a:buChar char="&#8226;"/></a:pPr>` +
	`{{else}}<a:pPr{{if .Center}} algn="ctr"{{end}}><a:buNone/></a:pPr>{{end}}` +
	`<a:r><a:rPr lang="ja-JP" altLang="en-US" sz="{{.Size}}"{{if .Bold}} b="1"{{end}} dirty="0"/><a:t>{{x .Text}}</a:t></a:r></a:p>{{end}}`

const textBoxXML = `{{define "textbox"}}<p:sp><p:nvSpPr><p:cNvPr id="{{.ID}}" name="{{.Name}}"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>` +
	`<p:spPr><a:xfrm><a:off x="{{.X}}" y="{{.Y}}"/><a:ext cx="{{.W}}" cy="{{.H}}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:noFill/></p:spPr>` +
	`<p:txBody><a:bodyPr wrap="square" anchor="{{.Anchor}}"><a:normAutofit/></a:bodyPr><a:lstStyle/>` +
	`{{range .Paragraphs}}{{template "paragraph" .}}{{else}}<a:p><a:endParaRPr lang="en-US" dirty="0"/></a:p>{{end}}` +
	`</p:txBody></p:sp>{{end}}`

var slideTmpl = mustParse("slide", paragraphXML+textBoxXML+xmlHeader+
	`<p:sld `+nsDecl+`><p:cSld><p:spTree>`+emptyTree+
	`{{range .Boxes}}{{template "textbox" .}}{{end}}`+
	`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)

var themeTmpl = mustParse("theme", xmlHeader+
	`<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="Ekaya">`+
	`<a:themeElements>`+
	`<a:clrScheme name="Ekaya">`+
	`<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1><a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>`+
	`<a:dk2><a:srgbClr val="1F2A44"/></a:dk2><a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>`+
	`<a:accent1><a:srgbClr val="2F5597"/></a:accent1><a:accent2><a:srgbClr val="ED7D31"/></a:accent2>`+
	`<a:accent3><a:srgbClr val="A5A5A5"/></a:accent3><a:accent4><a:srgbClr val="FFC000"/></a:accent4>`+
	`<a:accent5><a:srgbClr val="5B9BD5"/></a:accent5><a:accent6><a:srgbClr val="70AD47"/></a:accent6>`+
	`<a:hlink><a:srgbClr val="0563C1"/></a:hlink><a:folHlink><a:srgbClr val="954F72"/></a:folHlink>`+
	`</a:clrScheme>`+
	`<a:fontScheme name="Ekaya">`+
	`<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/><a:font script="Jpan" typeface="Yu Gothic Light"/></a:majorFont>`+
	`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/><a:font script="Jpan" typeface="Yu Gothic"/></a:minorFont>`+
	`</a:fontScheme>`+
	`<a:fmtScheme name="Ekaya">`+
	`<a:fillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:fillStyleLst>`+
	`<a:lnStyleLst><a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln></a:lnStyleLst>`+
	`<a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst>`+
	`<a:bgFillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:bgFillStyleLst>`+
	`</a:fmtScheme>`+
	`</a:themeElements>`+
	`</a:theme>`)
